// Package knowledge stores one embedded summary document per resolved
// medication and serves nearest-neighbor retrieval by cosine similarity.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pharmassist/pharmassist/internal/models"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS medication_documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    content TEXT NOT NULL,
    embedding TEXT,
    metadata TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_medication_documents_name ON medication_documents(name);`

// MinSimilarity is the retrieval cut-off: query results must score strictly
// above it.
const MinSimilarity = 0.3

// Index is the durable knowledge store. At most one document exists per
// medication name; re-upserting overwrites content, embedding and metadata
// in place.
type Index struct {
	db       *sql.DB
	embedder Embedder
	fallback Embedder
	logger   *zap.Logger
}

// New opens (or creates) the index database. The embedder may be the remote
// API client or the local fallback; remote failures degrade to the local
// fallback per call.
func New(dbPath string, embedder Embedder, logger *zap.Logger) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init knowledge schema: %w", err)
	}
	return &Index{
		db:       db,
		embedder: embedder,
		fallback: NewLocalEmbedder(),
		logger:   logger,
	}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

func (ix *Index) embed(ctx context.Context, text string) []float64 {
	vec, err := ix.embedder.Embed(ctx, text)
	if err == nil {
		return vec
	}
	ix.logger.Warn("embedding failed, using local fallback", zap.Error(err))
	vec, _ = ix.fallback.Embed(ctx, text)
	return vec
}

// Summarize builds the short text representation of a medication that gets
// embedded: name, active ingredient, primary indication, form, up to three
// side effects, prescription status.
func Summarize(name string, record models.MedicationRecord) string {
	parts := []string{"Medication: " + name}
	if record.ActiveIngredient != "" {
		parts = append(parts, "Active ingredient: "+record.ActiveIngredient)
	}
	if len(record.Indications) > 0 {
		parts = append(parts, "Used for: "+record.Indications[0])
	}
	if record.DosageForm != "" {
		parts = append(parts, "Form: "+record.DosageForm)
	}
	if len(record.CommonSideEffects) > 0 {
		top := record.CommonSideEffects
		if len(top) > 3 {
			top = top[:3]
		}
		parts = append(parts, "Side effects: "+strings.Join(top, ", "))
	}
	if record.RequiresRx {
		parts = append(parts, "Requires prescription")
	} else {
		parts = append(parts, "Over-the-counter")
	}
	return strings.Join(parts, ". ")
}

// Upsert writes or overwrites the document for a medication. The caller is
// expected to treat failures as quality-of-service only: log and move on.
func (ix *Index) Upsert(ctx context.Context, name string, record models.MedicationRecord) error {
	content := Summarize(name, record)
	vec := ix.embed(ctx, content)

	embJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	metaJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = ix.db.ExecContext(ctx, `
        INSERT INTO medication_documents (name, content, embedding, metadata)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            content = excluded.content,
            embedding = excluded.embedding,
            metadata = excluded.metadata,
            created_at = CURRENT_TIMESTAMP`,
		name, content, string(embJSON), string(metaJSON))
	if err != nil {
		return fmt.Errorf("upsert document %q: %w", name, err)
	}
	ix.logger.Debug("stored medication document", zap.String("name", name))
	return nil
}

// Query embeds the input text and returns the top-k documents with cosine
// similarity strictly above MinSimilarity, most similar first. Lookup
// failures yield an empty slice, never an error.
func (ix *Index) Query(ctx context.Context, text string, k int) []models.KnowledgeResult {
	queryVec := ix.embed(ctx, text)

	rows, err := ix.db.QueryContext(ctx,
		`SELECT name, content, embedding, metadata FROM medication_documents`)
	if err != nil {
		ix.logger.Warn("knowledge query failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var results []models.KnowledgeResult
	for rows.Next() {
		var name, content, embJSON, metaJSON string
		if err := rows.Scan(&name, &content, &embJSON, &metaJSON); err != nil {
			ix.logger.Warn("knowledge row scan failed", zap.Error(err))
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			ix.logger.Warn("bad stored embedding", zap.String("name", name), zap.Error(err))
			continue
		}
		sim := Cosine(queryVec, vec)
		if sim <= MinSimilarity {
			continue
		}
		var meta models.MedicationRecord
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			meta = models.MedicationRecord{Name: name}
		}
		results = append(results, models.KnowledgeResult{
			Name:       name,
			Content:    content,
			Metadata:   meta,
			Similarity: sim,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// Get returns the stored document for an exact name, if present.
func (ix *Index) Get(ctx context.Context, name string) (models.KnowledgeResult, bool) {
	var result models.KnowledgeResult
	var metaJSON string
	err := ix.db.QueryRowContext(ctx,
		`SELECT name, content, metadata FROM medication_documents WHERE name = ?`, name).
		Scan(&result.Name, &result.Content, &metaJSON)
	if err != nil {
		if err != sql.ErrNoRows {
			ix.logger.Warn("knowledge get failed", zap.String("name", name), zap.Error(err))
		}
		return models.KnowledgeResult{}, false
	}
	_ = json.Unmarshal([]byte(metaJSON), &result.Metadata)
	return result, true
}
