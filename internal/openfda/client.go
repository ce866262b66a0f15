// Package openfda resolves medication names to structured drug facts using
// the public openFDA drug label API, with a 24h in-process cache.
package openfda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pharmassist/pharmassist/internal/models"
	"go.uber.org/zap"
)

// DefaultBaseURL is the openFDA drug label endpoint.
const DefaultBaseURL = "https://api.fda.gov/drug/label.json"

const (
	cacheTTL       = 24 * time.Hour
	requestTimeout = 10 * time.Second
	userAgent      = "Pharmacist-Assistant/1.0"
)

// Small fixed vocabularies scanned against free-text label fields. If no
// term is found the list gets a "see package insert" placeholder instead of
// staying empty.
var (
	sideEffectTerms       = []string{"nausea", "headache", "dizziness", "fatigue", "diarrhea", "stomach upset"}
	contraindicationTerms = []string{"pregnancy", "allergy", "liver disease", "kidney disease", "bleeding"}
)

const packageInsertNote = "See package insert for complete list"

var strengthPattern = regexp.MustCompile(`(?i)(\d+)\s*mg`)

type cacheEntry struct {
	record    models.MedicationRecord
	fetchedAt time.Time
}

// Client fetches and caches medication records. It is safe for concurrent
// use; the cache is the only shared state and is guarded by mu.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// New returns a resolver against the given label API endpoint. Pass
// DefaultBaseURL outside of tests.
func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
		cache:   make(map[string]cacheEntry),
	}
}

// Resolve looks up one medication by name. It never returns a Go error: all
// failure paths produce an error-marked record plus a call trace describing
// what happened. Error records are not cached.
func (c *Client) Resolve(ctx context.Context, name string) (models.MedicationRecord, models.APICall) {
	now := time.Now().UTC().Format(time.RFC3339)
	key := strings.ToLower(name)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < cacheTTL {
		c.logger.Debug("using cached medication data", zap.String("name", name))
		return entry.record, models.APICall{
			MedicationName: name,
			URL:            c.baseURL + " (cached)",
			Status:         http.StatusOK,
			StatusText:     "OK (cached)",
			LatencyMS:      0,
			Success:        true,
			Cached:         true,
			Timestamp:      now,
		}
	}

	term := url.QueryEscape(name)
	apiURL := c.baseURL + `?search=openfda.brand_name:"` + term + `"+OR+openfda.generic_name:"` + term + `"&limit=1`

	trace := models.APICall{
		MedicationName: name,
		URL:            apiURL,
		Timestamp:      now,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		trace.StatusText = err.Error()
		return errorRecord(name), trace
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	trace.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		trace.StatusText = err.Error()
		c.logger.Warn("openFDA request failed", zap.String("name", name), zap.Error(err))
		return errorRecord(name), trace
	}
	defer resp.Body.Close()

	trace.Status = resp.StatusCode
	trace.StatusText = resp.Status
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.logger.Warn("openFDA returned non-success status",
			zap.String("name", name),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return errorRecord(name), trace
	}

	var payload labelResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		trace.StatusText = fmt.Sprintf("decode error: %v", err)
		return errorRecord(name), trace
	}
	if len(payload.Results) == 0 {
		trace.StatusText = "No results found"
		c.logger.Info("no openFDA results", zap.String("name", name))
		return errorRecord(name), trace
	}

	trace.Success = true
	record := mapLabel(name, payload.Results[0])

	c.mu.Lock()
	c.cache[key] = cacheEntry{record: record, fetchedAt: time.Now()}
	c.mu.Unlock()

	c.logger.Debug("fetched medication data", zap.String("name", name))
	return record, trace
}

// ResolveWithStrength resolves and additionally checks the record against a
// caller-supplied expected strength in mg. A mismatch yields a distinct
// error record rather than the mismatched data.
func (c *Client) ResolveWithStrength(ctx context.Context, name string, strengthMG int) (models.MedicationRecord, models.APICall) {
	record, trace := c.Resolve(ctx, name)
	if record.IsError() || strengthMG == 0 || record.StrengthMG == 0 {
		return record, trace
	}
	if record.StrengthMG != strengthMG {
		return models.MedicationRecord{
			Name: name,
			Err: fmt.Sprintf("Medication found but strength mismatch. Found: %dmg, requested: %dmg",
				record.StrengthMG, strengthMG),
		}, trace
	}
	return record, trace
}

// Prescription derives the prescription-requirements view for a medication.
func (c *Client) Prescription(ctx context.Context, name string) (models.PrescriptionInfo, error) {
	record, _ := c.Resolve(ctx, name)
	if record.IsError() {
		if fb, ok := Fallback(name); ok {
			record = fb
		} else {
			return models.PrescriptionInfo{}, fmt.Errorf("prescription information not available for %q", name)
		}
	}
	typ := "over-the-counter"
	if record.RequiresRx {
		typ = "prescription"
	}
	notes := "See package insert for complete information"
	if len(record.Contraindications) > 0 {
		notes = "Contraindications: " + strings.Join(record.Contraindications, ", ")
	}
	return models.PrescriptionInfo{
		Name:             record.Name,
		RequiresRx:       record.RequiresRx,
		PrescriptionType: typ,
		AgeRestrictions:  "See package insert or consult pharmacist",
		GeneralNotes:     notes,
		InsuranceNotes:   "Varies by insurance plan",
	}, nil
}

func errorRecord(name string) models.MedicationRecord {
	return models.MedicationRecord{
		Name: name,
		Err:  "Medication information not available. Please consult a pharmacist.",
	}
}

type labelResponse struct {
	Results []labelResult `json:"results"`
}

type labelResult struct {
	OpenFDA struct {
		SubstanceName    []string `json:"substance_name"`
		GenericName      []string `json:"generic_name"`
		BrandName        []string `json:"brand_name"`
		ProductType      []string `json:"product_type"`
		ManufacturerName []string `json:"manufacturer_name"`
	} `json:"openfda"`
	ActiveIngredient  textList `json:"active_ingredient"`
	DosageAndAdmin    textList `json:"dosage_and_administration"`
	Dosage            textList `json:"dosage"`
	AdverseReactions  textList `json:"adverse_reactions"`
	Contraindications textList `json:"contraindications"`
	Warnings          textList `json:"warnings"`
	WarningsCautions  textList `json:"warnings_and_cautions"`
	Indications       textList `json:"indications_and_usage"`
	HowSupplied       textList `json:"how_supplied"`
	StorageHandling   textList `json:"storage_and_handling"`
}

// textList tolerates the openFDA habit of sending free-text label fields as
// either a string or an array of strings.
type textList []string

func (t *textList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*t = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*t = []string{one}
	return nil
}

func (t textList) first() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

func mapLabel(name string, drug labelResult) models.MedicationRecord {
	fda := drug.OpenFDA

	active := firstNonEmpty(first(fda.SubstanceName), first(fda.GenericName), drug.ActiveIngredient.first(), name)

	form := first(fda.ProductType)
	if form == "" {
		if dosage := drug.DosageAndAdmin.first(); dosage != "" {
			form = strings.Fields(dosage)[0]
		}
	}
	if form == "" {
		form = "tablet"
	}

	record := models.MedicationRecord{
		Name:               name,
		ActiveIngredient:   active,
		DosageForm:         form,
		DosageInstructions: firstNonEmpty(drug.DosageAndAdmin.first(), drug.Dosage.first()),
		CommonSideEffects:  scanVocabulary(drug.AdverseReactions, sideEffectTerms),
		Contraindications:  scanVocabulary(drug.Contraindications, contraindicationTerms),
		RequiresRx:         strings.Contains(strings.ToUpper(first(fda.ProductType)), "PRESCRIPTION"),
		Manufacturer:       firstNonEmpty(first(fda.ManufacturerName), "Unknown"),
		Storage:            firstNonEmpty(drug.HowSupplied.first(), drug.StorageHandling.first(), "Store at room temperature"),
		Warnings:           firstList(drug.Warnings, drug.WarningsCautions),
		Indications:        drug.Indications,
	}

	// mg strength: active-ingredient text first, dosage text only as the
	// secondary attempt.
	record.StrengthMG = parseStrength(drug.ActiveIngredient.first())
	if record.StrengthMG == 0 {
		record.StrengthMG = parseStrength(drug.DosageAndAdmin.first())
	}

	return record
}

// scanVocabulary collects the vocabulary terms present in any of the texts,
// in vocabulary order, substituting the package-insert placeholder when
// nothing matches.
func scanVocabulary(texts []string, vocabulary []string) []string {
	var found []string
	for _, term := range vocabulary {
		for _, text := range texts {
			if strings.Contains(strings.ToLower(text), term) {
				found = append(found, term)
				break
			}
		}
	}
	if len(found) == 0 {
		return []string{packageInsertNote}
	}
	return found
}

func parseStrength(text string) int {
	m := strengthPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstList(lists ...textList) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
