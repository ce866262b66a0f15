package extract_test

import (
	"reflect"
	"testing"

	"github.com/pharmassist/pharmassist/internal/extract"
)

func TestNoCapitalizedTokens(t *testing.T) {
	for _, msg := range []string{
		"tell me about ibuprofen",
		"what do you have in stock?",
		"hello, how are you today",
		"",
		"do you sell painkillers here",
	} {
		if got := extract.Extract(msg); len(got) != 0 {
			t.Fatalf("Extract(%q) = %v, want empty", msg, got)
		}
	}
}

func TestTellMeAbout(t *testing.T) {
	got := extract.Extract("Tell me about Ibuprofen")
	if !reflect.DeepEqual(got, []string{"Ibuprofen"}) {
		t.Fatalf("got %v, want [Ibuprofen]", got)
	}
}

func TestWhatAbout(t *testing.T) {
	got := extract.Extract("What about Aspirin?")
	if !reflect.DeepEqual(got, []string{"Aspirin"}) {
		t.Fatalf("got %v, want [Aspirin]", got)
	}
}

func TestAvailabilityPatterns(t *testing.T) {
	cases := map[string][]string{
		"Is Tylenol available?":         {"Tylenol"},
		"Do you have Aspirin in stock?": {"Aspirin"},
		"Can I get Loratadine here?":    {"Loratadine"},
	}
	for msg, want := range cases {
		if got := extract.Extract(msg); !reflect.DeepEqual(got, want) {
			t.Fatalf("Extract(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestSuffixPattern(t *testing.T) {
	got := extract.Extract("I need Naproxen dosage please")
	if !reflect.DeepEqual(got, []string{"Naproxen"}) {
		t.Fatalf("got %v, want [Naproxen]", got)
	}
}

func TestStopwordsNeverReturned(t *testing.T) {
	for _, msg := range []string{
		"Tell me about The Store",
		"What is This?",
		"Do you have Anything else",
		"Is There more",
	} {
		for _, name := range extract.Extract(msg) {
			switch name {
			case "The", "This", "Anything", "There", "Store":
				t.Fatalf("Extract(%q) returned function word %q", msg, name)
			}
		}
	}
}

func TestDeduplicatePreservesOrder(t *testing.T) {
	got := extract.Extract("Tell me about Ibuprofen. Ibuprofen dosage?")
	if !reflect.DeepEqual(got, []string{"Ibuprofen"}) {
		t.Fatalf("got %v, want [Ibuprofen]", got)
	}
}

func TestMultiWordCandidate(t *testing.T) {
	got := extract.Extract("Tell me about Tylenol Extra")
	if !reflect.DeepEqual(got, []string{"Tylenol Extra"}) {
		t.Fatalf("got %v, want [Tylenol Extra]", got)
	}
}

func TestShortTokensRejected(t *testing.T) {
	if got := extract.Extract("What is B12?"); len(got) != 0 {
		t.Fatalf("got %v, want empty (mixed-case 3-char token)", got)
	}
	if got := extract.Extract("Tell me about XR"); len(got) != 0 {
		t.Fatalf("got %v, want empty (2-char token)", got)
	}
}

func TestThreeLetterException(t *testing.T) {
	got := extract.Extract("Tell me about Ery")
	if !reflect.DeepEqual(got, []string{"Ery"}) {
		t.Fatalf("got %v, want [Ery] (capital plus two lowercase)", got)
	}
}

func TestCapitalizedFallback(t *testing.T) {
	got := extract.Extract("Does your pharmacy carry Metformin at all")
	if !reflect.DeepEqual(got, []string{"Metformin"}) {
		t.Fatalf("got %v, want [Metformin]", got)
	}
}
