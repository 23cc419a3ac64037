package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/statusfx/internal/data"
)

// DefinitionRepository хранит контент эффектов в PostgreSQL.
// Определения лежат целиком в JSONB body; скалярные колонки нужны для
// фильтрации, checksum — чтобы не перезаписывать неизменённые строки.
type DefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepository создаёт новый DefinitionRepository.
func NewDefinitionRepository(pool *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

// Checksum returns the BLAKE2b-256 digest of the canonical JSON body.
func Checksum(doc data.DefinitionDoc) ([]byte, []byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding definition %q: %w", doc.ID, err)
	}
	sum := blake2b.Sum256(body)
	return body, sum[:], nil
}

// UpsertDefinitions сохраняет определения в одной транзакции.
// Строки с совпадающим checksum не трогаются. Возвращает число изменённых строк.
func (r *DefinitionRepository) UpsertDefinitions(ctx context.Context, docs []data.DefinitionDoc) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	changed := 0
	for _, doc := range docs {
		body, sum, err := Checksum(doc)
		if err != nil {
			return 0, err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO effect_definitions (id, name, grp, comparable_name, body, checksum)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				grp = EXCLUDED.grp,
				comparable_name = EXCLUDED.comparable_name,
				body = EXCLUDED.body,
				checksum = EXCLUDED.checksum,
				updated_at = now()
			WHERE effect_definitions.checksum <> EXCLUDED.checksum`,
			doc.ID, doc.Name, doc.Group, doc.Comparable, body, sum,
		)
		if err != nil {
			return 0, fmt.Errorf("upserting definition %q: %w", doc.ID, err)
		}
		changed += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing definitions: %w", err)
	}
	return changed, nil
}

// LoadDefinitions загружает все определения, упорядоченные по id.
func (r *DefinitionRepository) LoadDefinitions(ctx context.Context) ([]data.DefinitionDoc, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, body, checksum FROM effect_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying definitions: %w", err)
	}
	defer rows.Close()

	docs := make([]data.DefinitionDoc, 0, 64)
	for rows.Next() {
		var (
			id        string
			body, sum []byte
		)
		if err := rows.Scan(&id, &body, &sum); err != nil {
			return nil, fmt.Errorf("scanning definition row: %w", err)
		}
		doc, err := decodeDefinition(id, body, sum)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating definition rows: %w", err)
	}
	return docs, nil
}

// GetDefinition возвращает одно определение или ErrNotFound.
func (r *DefinitionRepository) GetDefinition(ctx context.Context, id string) (data.DefinitionDoc, error) {
	var body, sum []byte
	err := r.pool.QueryRow(ctx,
		`SELECT body, checksum FROM effect_definitions WHERE id = $1`, id,
	).Scan(&body, &sum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return data.DefinitionDoc{}, fmt.Errorf("definition %q: %w", id, ErrNotFound)
		}
		return data.DefinitionDoc{}, fmt.Errorf("querying definition %q: %w", id, err)
	}
	return decodeDefinition(id, body, sum)
}

// DeleteDefinition удаляет определение. Отсутствующий id — ErrNotFound.
func (r *DefinitionRepository) DeleteDefinition(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM effect_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting definition %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("definition %q: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertAttributes сохраняет объявления атрибутов.
func (r *DefinitionRepository) UpsertAttributes(ctx context.Context, attrs []data.AttributeDoc) error {
	batch := &pgx.Batch{}
	for _, a := range attrs {
		kind := a.Kind
		if kind == "" {
			kind = "float"
		}
		batch.Queue(`
			INSERT INTO effect_attributes (name, kind) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET kind = EXCLUDED.kind, updated_at = now()
			WHERE effect_attributes.kind <> EXCLUDED.kind`,
			a.Name, kind)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting attributes: %w", err)
	}
	return nil
}

// LoadAttributes загружает объявления атрибутов в порядке имени.
func (r *DefinitionRepository) LoadAttributes(ctx context.Context) ([]data.AttributeDoc, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, kind FROM effect_attributes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying attributes: %w", err)
	}
	attrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (data.AttributeDoc, error) {
		var a data.AttributeDoc
		err := row.Scan(&a.Name, &a.Kind)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning attributes: %w", err)
	}
	return attrs, nil
}

// LoadFile returns attributes and definitions in the shape the YAML loader produces.
func (r *DefinitionRepository) LoadFile(ctx context.Context) (data.File, error) {
	attrs, err := r.LoadAttributes(ctx)
	if err != nil {
		return data.File{}, err
	}
	defs, err := r.LoadDefinitions(ctx)
	if err != nil {
		return data.File{}, err
	}
	return data.File{Attributes: attrs, Definitions: defs}, nil
}

// decodeDefinition verifies the checksum against the re-encoded body.
// JSONB does not keep key order, so the stored bytes cannot be hashed directly.
func decodeDefinition(id string, body, sum []byte) (data.DefinitionDoc, error) {
	var doc data.DefinitionDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return doc, fmt.Errorf("decoding definition %q: %w", id, err)
	}
	_, canonical, err := Checksum(doc)
	if err != nil {
		return doc, err
	}
	if !bytes.Equal(canonical, sum) {
		return doc, fmt.Errorf("definition %q: %w", id, ErrChecksumMismatch)
	}
	return doc, nil
}
