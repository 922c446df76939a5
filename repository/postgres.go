package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	profileengine "github.com/gofhir/profileengine"
	"github.com/gofhir/profileengine/search"
	"github.com/gofhir/profileengine/search/compiler"
	"github.com/gofhir/profileengine/search/schema"
	"github.com/gofhir/profileengine/serializer"
)

// PostgresRepository implements Interface over a pgx/v5 connection pool,
// writing the main row and its history row in one transaction per spec
// §4.M/§5, and populating the registry-derived search columns and shared
// lookup tables on every write.
type PostgresRepository struct {
	pool     *pgxpool.Pool
	registry *search.Registry
	builder  *schema.Builder
	compiler *compiler.Compiler
	opts     *profileengine.Options
}

// NewPostgresRepository constructs a PostgresRepository over pool, driven
// by registry for search column/lookup table shape.
func NewPostgresRepository(pool *pgxpool.Pool, registry *search.Registry, opts ...profileengine.Option) *PostgresRepository {
	return &PostgresRepository{
		pool:     pool,
		registry: registry,
		builder:  schema.NewBuilder(registry),
		compiler: compiler.NewCompiler(registry),
		opts:     profileengine.Apply(opts...),
	}
}

// EnsureSchema emits the idempotent DDL for every resourceType (plus the
// fixed shared lookup tables once), tables before indexes (spec §4.K).
func (r *PostgresRepository) EnsureSchema(ctx context.Context, resourceTypes []string) error {
	var stmts []schema.Statement
	stmts = append(stmts, schema.BuildLookupTables()...)
	for _, rt := range resourceTypes {
		stmts = append(stmts, r.builder.BuildResourceType(rt)...)
	}
	for _, kind := range []string{"table", "index"} {
		for _, s := range stmts {
			if s.Kind != kind {
				continue
			}
			if _, err := r.pool.Exec(ctx, s.SQL); err != nil {
				return fmt.Errorf("repository: ensure schema: %w", err)
			}
		}
	}
	return nil
}

// Create implements Interface.Create.
func (r *PostgresRepository) Create(ctx context.Context, resourceType string, content map[string]any, opts CreateOptions) (*Record, error) {
	start := time.Now()
	id := opts.AssignedID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	versionID := uuid.NewString()
	lastUpdated := time.Now().UTC()
	serverContent := applyServerFields(content, resourceType, id, versionID, lastUpdated)
	compartments := computeCompartments(resourceType, id, serverContent)
	body, err := serializer.MarshalResource(resourceType, serverContent)
	if err != nil {
		return nil, fmt.Errorf("repository: marshal resource: %w", err)
	}

	if err := r.upsertMainRow(ctx, tx, resourceType, id, versionID, lastUpdated, compartments, opts.ProjectID, string(body)); err != nil {
		return nil, err
	}
	if err := r.insertHistoryRow(ctx, tx, resourceType, id, versionID, lastUpdated, string(body)); err != nil {
		return nil, err
	}
	if err := r.populateSearchColumns(ctx, tx, resourceType, id, serverContent); err != nil {
		return nil, err
	}
	if err := r.populateLookupRows(ctx, tx, resourceType, id, serverContent); err != nil {
		return nil, err
	}
	if err := r.populateReferencesTable(ctx, tx, resourceType, id, serverContent); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: commit create: %w", err)
	}

	r.opts.Metrics.RecordOperation(time.Since(start), true)
	log.Debug().Str("resourceType", resourceType).Str("id", id).Msg("repository: created")

	return &Record{
		ResourceType: resourceType, ID: id, VersionID: versionID, Version: 1,
		LastUpdated: lastUpdated, Compartments: compartments, Content: serverContent,
	}, nil
}

func (r *PostgresRepository) upsertMainRow(ctx context.Context, tx pgx.Tx, resourceType, id, versionID string, lastUpdated time.Time, compartments []string, projectID, content string) error {
	sql := fmt.Sprintf(`
		INSERT INTO %q ("id", "content", "lastUpdated", "deleted", "projectId", "__version", "compartments")
		VALUES ($1, $2, $3, false, NULLIF($4, ''), 1, $5)
		ON CONFLICT ("id") DO UPDATE SET
			"content" = EXCLUDED."content",
			"lastUpdated" = EXCLUDED."lastUpdated",
			"deleted" = false,
			"__version" = 1,
			"compartments" = EXCLUDED."compartments"
	`, resourceType)
	_, err := tx.Exec(ctx, sql, id, content, lastUpdated, projectID, compartmentsUUIDs(compartments))
	if err != nil {
		return wrapConstraintError(resourceType, err)
	}
	_ = versionID
	return nil
}

func (r *PostgresRepository) insertHistoryRow(ctx context.Context, tx pgx.Tx, resourceType, id, versionID string, lastUpdated time.Time, content string) error {
	sql := fmt.Sprintf(`INSERT INTO %q ("id", "versionId", "lastUpdated", "content") VALUES ($1, $2, $3, $4)`, resourceType+"_History")
	_, err := tx.Exec(ctx, sql, id, versionID, lastUpdated, content)
	if err != nil {
		return wrapConstraintError(resourceType, err)
	}
	return nil
}

// Read implements Interface.Read.
func (r *PostgresRepository) Read(ctx context.Context, resourceType, id string) (*Record, error) {
	sql := fmt.Sprintf(`SELECT "content", "lastUpdated", "deleted", "__version", "compartments" FROM %q WHERE "id" = $1`, resourceType)
	row := r.pool.QueryRow(ctx, sql, id)

	var content string
	var lastUpdated time.Time
	var deleted bool
	var version int
	var compartments []string
	if err := row.Scan(&content, &lastUpdated, &deleted, &version, &compartments); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
		}
		return nil, fmt.Errorf("repository: read %s/%s: %w", resourceType, id, err)
	}
	if deleted {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}

	decoded, err := decodeContent(content)
	if err != nil {
		return nil, err
	}
	versionID, _ := decoded["meta"].(map[string]any)["versionId"].(string)
	return &Record{
		ResourceType: resourceType, ID: id, VersionID: versionID, Version: version,
		LastUpdated: lastUpdated, Compartments: compartments, Content: decoded,
	}, nil
}

// ReadVersion implements Interface.ReadVersion.
func (r *PostgresRepository) ReadVersion(ctx context.Context, resourceType, id, versionID string) (*HistoryEntry, error) {
	sql := fmt.Sprintf(`SELECT "lastUpdated", "content" FROM %q WHERE "id" = $1 AND "versionId" = $2`, resourceType+"_History")
	row := r.pool.QueryRow(ctx, sql, id, versionID)

	var lastUpdated time.Time
	var content string
	if err := row.Scan(&lastUpdated, &content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
		}
		return nil, fmt.Errorf("repository: read version %s/%s/%s: %w", resourceType, id, versionID, err)
	}
	if content == "" {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}
	decoded, err := decodeContent(content)
	if err != nil {
		return nil, err
	}
	return &HistoryEntry{VersionID: versionID, LastUpdated: lastUpdated, Content: decoded}, nil
}

// Update implements Interface.Update: the ifMatch check runs inside the
// same transaction that commits the new version, so the check and the
// write are atomic with respect to concurrent updates (spec §5).
func (r *PostgresRepository) Update(ctx context.Context, resourceType, id string, content map[string]any, opts UpdateOptions) (*Record, error) {
	start := time.Now()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentVersionID string
	var deleted bool
	sql := fmt.Sprintf(`SELECT (content::jsonb->'meta'->>'versionId'), "deleted" FROM %q WHERE "id" = $1 FOR UPDATE`, resourceType)
	if err := tx.QueryRow(ctx, sql, id).Scan(&currentVersionID, &deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
		}
		return nil, fmt.Errorf("repository: update lookup %s/%s: %w", resourceType, id, err)
	}
	if deleted {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}
	if opts.IfMatch != "" && opts.IfMatch != currentVersionID {
		return nil, &ResourceVersionConflictError{ResourceType: resourceType, ID: id, Expected: opts.IfMatch, Actual: currentVersionID}
	}

	versionID := uuid.NewString()
	lastUpdated := time.Now().UTC()
	serverContent := applyServerFields(content, resourceType, id, versionID, lastUpdated)
	compartments := computeCompartments(resourceType, id, serverContent)
	body, err := serializer.MarshalResource(resourceType, serverContent)
	if err != nil {
		return nil, fmt.Errorf("repository: marshal resource: %w", err)
	}

	updateSQL := fmt.Sprintf(`UPDATE %q SET "content" = $2, "lastUpdated" = $3, "compartments" = $4, "__version" = 1 WHERE "id" = $1`, resourceType)
	if _, err := tx.Exec(ctx, updateSQL, id, string(body), lastUpdated, compartmentsUUIDs(compartments)); err != nil {
		return nil, wrapConstraintError(resourceType, err)
	}
	if err := r.insertHistoryRow(ctx, tx, resourceType, id, versionID, lastUpdated, string(body)); err != nil {
		return nil, err
	}
	if err := r.populateSearchColumns(ctx, tx, resourceType, id, serverContent); err != nil {
		return nil, err
	}
	if err := r.populateLookupRows(ctx, tx, resourceType, id, serverContent); err != nil {
		return nil, err
	}
	if err := r.populateReferencesTable(ctx, tx, resourceType, id, serverContent); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: commit update: %w", err)
	}

	r.opts.Metrics.RecordOperation(time.Since(start), true)

	return &Record{
		ResourceType: resourceType, ID: id, VersionID: versionID, Version: 1,
		LastUpdated: lastUpdated, Compartments: compartments, Content: serverContent,
	}, nil
}

// Delete implements Interface.Delete.
func (r *PostgresRepository) Delete(ctx context.Context, resourceType, id string) (*Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	var deleted bool
	sql := fmt.Sprintf(`SELECT "deleted" FROM %q WHERE "id" = $1 FOR UPDATE`, resourceType)
	if err := tx.QueryRow(ctx, sql, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ResourceNotFoundError{ResourceType: resourceType, ID: id}
		}
		return nil, fmt.Errorf("repository: delete lookup %s/%s: %w", resourceType, id, err)
	}
	if deleted {
		return nil, &ResourceGoneError{ResourceType: resourceType, ID: id}
	}

	versionID := uuid.NewString()
	lastUpdated := time.Now().UTC()

	updateSQL := fmt.Sprintf(`UPDATE %q SET "content" = '', "deleted" = true, "lastUpdated" = $2, "__version" = -1 WHERE "id" = $1`, resourceType)
	if _, err := tx.Exec(ctx, updateSQL, id, lastUpdated); err != nil {
		return nil, wrapConstraintError(resourceType, err)
	}
	if err := r.insertHistoryRow(ctx, tx, resourceType, id, versionID, lastUpdated, ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: commit delete: %w", err)
	}

	return &Record{
		ResourceType: resourceType, ID: id, VersionID: versionID, Version: -1,
		LastUpdated: lastUpdated, Deleted: true,
	}, nil
}

// History implements Interface.History without an offset: Since filters
// on lastUpdated alone, and rows are ordered by (lastUpdated, versionId)
// descending.
func (r *PostgresRepository) History(ctx context.Context, resourceType, id string, opts HistoryOptions) ([]HistoryEntry, error) {
	sql := fmt.Sprintf(`SELECT "versionId", "lastUpdated", "content" FROM %q WHERE "id" = $1`, resourceType+"_History")
	args := []any{id}
	if !opts.Since.IsZero() {
		sql += fmt.Sprintf(` AND "lastUpdated" > $%d`, len(args)+1)
		args = append(args, opts.Since)
	}
	sql += ` ORDER BY "lastUpdated" DESC, "versionId" DESC`
	if opts.Count > 0 {
		sql += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, opts.Count)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: history %s/%s: %w", resourceType, id, err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var versionID, content string
		var lastUpdated time.Time
		if err := rows.Scan(&versionID, &lastUpdated, &content); err != nil {
			return nil, fmt.Errorf("repository: history scan %s/%s: %w", resourceType, id, err)
		}
		entry := HistoryEntry{VersionID: versionID, LastUpdated: lastUpdated, Deleted: content == ""}
		if content != "" {
			decoded, err := decodeContent(content)
			if err != nil {
				return nil, err
			}
			entry.Content = decoded
		}
		out = append(out, entry)
	}
	if len(out) == 0 {
		if _, err := r.Read(ctx, resourceType, id); err != nil {
			var notFound *ResourceNotFoundError
			if errors.As(err, &notFound) {
				return nil, err
			}
		}
	}
	return out, rows.Err()
}

// Query compiles params against resourceType and runs the resulting WHERE
// fragment, returning every live matching row (spec §4.L wired to a real
// execution path).
func (r *PostgresRepository) Query(ctx context.Context, resourceType string, params []compiler.Param) ([]Record, error) {
	compiled, err := r.compiler.Compile(resourceType, params)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT "id", "content", "lastUpdated", "__version", "compartments" FROM %q WHERE "deleted" = false AND (%s)`, resourceType, compiled.SQL)
	rows, err := r.pool.Query(ctx, sql, compiled.Values...)
	if err != nil {
		return nil, fmt.Errorf("repository: query %s: %w", resourceType, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id, content string
		var lastUpdated time.Time
		var version int
		var compartments []string
		if err := rows.Scan(&id, &content, &lastUpdated, &version, &compartments); err != nil {
			return nil, fmt.Errorf("repository: query scan %s: %w", resourceType, err)
		}
		decoded, err := decodeContent(content)
		if err != nil {
			return nil, err
		}
		versionID, _ := decoded["meta"].(map[string]any)["versionId"].(string)
		out = append(out, Record{
			ResourceType: resourceType, ID: id, VersionID: versionID, Version: version,
			LastUpdated: lastUpdated, Compartments: compartments, Content: decoded,
		})
	}
	return out, rows.Err()
}

// populateSearchColumns writes every registry-derived column strategy's
// value for resourceType/id, extracted from content by the registered
// parameter's target field. Token-column code/system resolution to a
// terminology-backed UUID is out of scope (spec §1 Non-goal: no
// terminology service), so the UUID column is left null and only the
// text companion column is populated.
func (r *PostgresRepository) populateSearchColumns(ctx context.Context, tx pgx.Tx, resourceType, id string, content map[string]any) error {
	for _, impl := range r.registry.Iterate(resourceType) {
		switch impl.Strategy {
		case search.StrategyColumn:
			values := extractValues(content, impl.TargetField)
			var v any
			if len(values) > 0 {
				v = values[0]
			}
			sql := fmt.Sprintf(`UPDATE %q SET %q = $2 WHERE "id" = $1`, resourceType, impl.ColumnName)
			if _, err := tx.Exec(ctx, sql, id, v); err != nil {
				return wrapConstraintError(resourceType, err)
			}
		case search.StrategyTokenColumn:
			values := extractValues(content, impl.TargetField)
			texts := make([]string, 0, len(values))
			for _, v := range values {
				texts = append(texts, fmt.Sprintf("%v", v))
			}
			sql := fmt.Sprintf(`UPDATE %q SET %q = $2 WHERE "id" = $1`, resourceType, impl.TextColumn)
			if _, err := tx.Exec(ctx, sql, id, texts); err != nil {
				return wrapConstraintError(resourceType, err)
			}
		}
	}
	return nil
}

// populateLookupRows replaces resourceType/id's rows in every shared
// lookup table this resource type's registry entries reference, one row
// per repeating element instance (spec §4.J/§4.K).
func (r *PostgresRepository) populateLookupRows(ctx context.Context, tx pgx.Tx, resourceType, id string, content map[string]any) error {
	seen := map[string]bool{}
	for _, impl := range r.registry.Iterate(resourceType) {
		if impl.Strategy != search.StrategyLookupTable || seen[impl.LookupTable] {
			continue
		}
		seen[impl.LookupTable] = true

		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %q WHERE "resourceId" = $1`, impl.LookupTable), id); err != nil {
			return wrapConstraintError(resourceType, err)
		}
		items := extractObjects(content, impl.TargetField)
		for _, item := range items {
			if err := insertLookupRow(ctx, tx, impl.LookupTable, resourceType, id, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// populateReferencesTable replaces resourceType/id's rows in
// "<resourceType>_References" with one row per resolvable reference found
// under every registered reference-type search parameter, backing chained
// search's JOIN (spec §4.L "Chained search").
func (r *PostgresRepository) populateReferencesTable(ctx context.Context, tx pgx.Tx, resourceType, id string, content map[string]any) error {
	table := resourceType + "_References"
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %q WHERE "resourceId" = $1`, table), id); err != nil {
		return wrapConstraintError(resourceType, err)
	}

	for _, impl := range r.registry.Iterate(resourceType) {
		if impl.Type != search.TypeReference {
			continue
		}
		for _, ref := range extractReferenceTargets(impl.Code, content, impl.TargetField) {
			sql := fmt.Sprintf(`INSERT INTO %q ("resourceId", "targetId", "code", "targetType") VALUES ($1, $2, $3, $4)`, table)
			if _, err := tx.Exec(ctx, sql, id, ref.target.ResourceID, ref.code, ref.target.ResourceType); err != nil {
				return wrapConstraintError(resourceType, err)
			}
		}
	}
	return nil
}

func insertLookupRow(ctx context.Context, tx pgx.Tx, table, resourceType, id string, item map[string]any) error {
	switch table {
	case "HumanName":
		family, _ := item["family"].(string)
		text, _ := item["text"].(string)
		sql := `INSERT INTO "HumanName" ("resourceId", "resourceType", "family", "given", "text") VALUES ($1, $2, $3, $4, $5)`
		_, err := tx.Exec(ctx, sql, id, resourceType, family, joinStrings(item["given"]), text)
		return err
	case "Address":
		sql := `INSERT INTO "Address" ("resourceId", "resourceType", "line", "city", "state", "postalCode", "country") VALUES ($1, $2, $3, $4, $5, $6, $7)`
		city, _ := item["city"].(string)
		state, _ := item["state"].(string)
		postalCode, _ := item["postalCode"].(string)
		country, _ := item["country"].(string)
		_, err := tx.Exec(ctx, sql, id, resourceType, joinStrings(item["line"]), city, state, postalCode, country)
		return err
	case "ContactPoint":
		system, _ := item["system"].(string)
		value, _ := item["value"].(string)
		sql := `INSERT INTO "ContactPoint" ("resourceId", "resourceType", "system", "value") VALUES ($1, $2, $3, $4)`
		_, err := tx.Exec(ctx, sql, id, resourceType, system, value)
		return err
	case "Identifier":
		system, _ := item["system"].(string)
		value, _ := item["value"].(string)
		sql := `INSERT INTO "Identifier" ("resourceId", "resourceType", "system", "value") VALUES ($1, $2, $3, $4)`
		_, err := tx.Exec(ctx, sql, id, resourceType, system, value)
		return err
	default:
		return nil
	}
}

func joinStrings(v any) string {
	raw, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// extractValues walks a dotted target field (already stripped of its
// leading "<ResourceType>." prefix) through content, collecting every
// leaf scalar value it finds, descending into arrays at each segment.
func extractValues(content map[string]any, targetField string) []any {
	cur := []any{any(content)}
	for _, seg := range strings.Split(targetField, ".") {
		var next []any
		for _, c := range cur {
			switch v := c.(type) {
			case map[string]any:
				if val, ok := v[seg]; ok {
					next = append(next, val)
				}
			case []any:
				for _, item := range v {
					if obj, ok := item.(map[string]any); ok {
						if val, ok := obj[seg]; ok {
							next = append(next, val)
						}
					}
				}
			}
		}
		cur = next
	}
	var out []any
	for _, c := range cur {
		switch v := c.(type) {
		case []any:
			out = append(out, v...)
		case map[string]any:
			// leave complex values for extractObjects; skip here.
		default:
			out = append(out, v)
		}
	}
	return out
}

// extractObjects returns every object instance at targetField, for
// lookup-table population.
func extractObjects(content map[string]any, targetField string) []map[string]any {
	cur := any(content)
	segments := strings.Split(targetField, ".")
	for i, seg := range segments {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[seg]
		case []any:
			var collected []any
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					collected = append(collected, obj[seg])
				}
			}
			cur = collected
		default:
			return nil
		}
		_ = i
	}
	switch v := cur.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	default:
		return nil
	}
}

func compartmentsUUIDs(compartments []string) []string {
	if compartments == nil {
		return []string{}
	}
	return compartments
}

func decodeContent(content string) (map[string]any, error) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, fmt.Errorf("repository: decode content: %w", err)
	}
	return decoded, nil
}

// wrapConstraintError promotes a pgx constraint-violation error to
// ConstraintViolationError; every other error passes through wrapped with
// context.
func wrapConstraintError(resourceType string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23503" || pgErr.Code == "23514") {
		return &ConstraintViolationError{ResourceType: resourceType, Constraint: pgErr.ConstraintName, Message: pgErr.Message}
	}
	return fmt.Errorf("repository: %s: %w", resourceType, err)
}

var _ Interface = (*PostgresRepository)(nil)
