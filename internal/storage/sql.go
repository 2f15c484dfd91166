package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/resumatch/internal/models"
)

// SQLStorage implements Storage on database/sql. The same queries serve SQLite
// and Postgres; the dialect handles placeholders, ids and constraint errors.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name   string
	schema string
	// returning is true when inserts report their id with RETURNING.
	returning bool
	unique    func(error) bool
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	CREATE TABLE IF NOT EXISTS resumes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		original_filename TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		parsed_text TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resumes_user_id ON resumes(user_id);

	CREATE TABLE IF NOT EXISTS jds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		admin_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		parsed_text TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jds_admin_id ON jds(admin_id);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		resume_id INTEGER NOT NULL,
		jd_id INTEGER NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		verdict TEXT NOT NULL,
		missing_skills TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		UNIQUE (resume_id, jd_id)
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_jd_id ON evaluations(jd_id);
	CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
	`,
	unique: isSQLiteUniqueViolation,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: `
	CREATE TABLE IF NOT EXISTS resumes (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		original_filename TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		parsed_text TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resumes_user_id ON resumes(user_id);

	CREATE TABLE IF NOT EXISTS jds (
		id BIGSERIAL PRIMARY KEY,
		admin_id BIGINT NOT NULL,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		parsed_text TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jds_admin_id ON jds(admin_id);

	CREATE TABLE IF NOT EXISTS evaluations (
		id BIGSERIAL PRIMARY KEY,
		resume_id BIGINT NOT NULL,
		jd_id BIGINT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		verdict TEXT NOT NULL,
		missing_skills TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (resume_id, jd_id)
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_jd_id ON evaluations(jd_id);
	CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
	`,
	returning: true,
	unique:    isPostgresUniqueViolation,
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return newSQLStorage(db, sqliteDialect)
}

// NewPostgresStorage connects with a lib/pq DSN and initializes the schema.
func NewPostgresStorage(ctx context.Context, dsn string) (*SQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStorage(db, postgresDialect)
}

func newSQLStorage(db *sql.DB, d dialect) (*SQLStorage, error) {
	if _, err := db.Exec(d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLStorage{db: db, dialect: d}, nil
}

// Driver returns the dialect name.
func (s *SQLStorage) Driver() string {
	return s.dialect.name
}

// rebind rewrites ? placeholders for Postgres.
func (s *SQLStorage) rebind(query string) string {
	if !s.dialect.returning {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if s.dialect.returning {
		var id int64
		err := s.db.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLStorage) execAffecting(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const resumeColumns = `id, user_id, original_filename, filename, file_path, file_type, parsed_text, uploaded_at`

func scanResume(row interface{ Scan(...interface{}) error }) (*models.Resume, error) {
	var r models.Resume
	if err := row.Scan(&r.ID, &r.UserID, &r.OriginalFilename, &r.Filename, &r.FilePath, &r.FileType, &r.ParsedText, &r.UploadedAt); err != nil {
		return nil, err
	}
	r.UploadedAt = r.UploadedAt.UTC()
	return &r, nil
}

// CreateResume inserts r and sets its ID. UploadedAt defaults to now.
func (s *SQLStorage) CreateResume(ctx context.Context, r *models.Resume) error {
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx,
		`INSERT INTO resumes (user_id, original_filename, filename, file_path, file_type, parsed_text, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.OriginalFilename, r.Filename, r.FilePath, r.FileType, r.ParsedText, r.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert resume: %w", err)
	}
	r.ID = id
	return nil
}

// GetResume returns a resume by ID.
func (s *SQLStorage) GetResume(ctx context.Context, id int64) (*models.Resume, error) {
	r, err := scanResume(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+resumeColumns+` FROM resumes WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// UpdateResume replaces the file fields and parsed text of an existing resume.
func (s *SQLStorage) UpdateResume(ctx context.Context, r *models.Resume) error {
	return s.execAffecting(ctx,
		`UPDATE resumes SET original_filename = ?, filename = ?, file_path = ?, file_type = ?, parsed_text = ?, uploaded_at = ?
		 WHERE id = ?`,
		r.OriginalFilename, r.Filename, r.FilePath, r.FileType, r.ParsedText, r.UploadedAt.UTC(), r.ID,
	)
}

// DeleteResume removes a resume. Evaluations referencing it are kept.
func (s *SQLStorage) DeleteResume(ctx context.Context, id int64) error {
	return s.execAffecting(ctx, `DELETE FROM resumes WHERE id = ?`, id)
}

// ListResumes returns resumes matching f ordered by ID.
func (s *SQLStorage) ListResumes(ctx context.Context, f DocumentFilter) ([]*models.Resume, error) {
	where, args := documentWhere("user_id", "uploaded_at", f)
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+resumeColumns+` FROM resumes`+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Resume
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const jdColumns = `id, admin_id, filename, file_path, file_type, title, parsed_text, uploaded_at`

func scanJD(row interface{ Scan(...interface{}) error }) (*models.JobDescription, error) {
	var jd models.JobDescription
	if err := row.Scan(&jd.ID, &jd.AdminID, &jd.Filename, &jd.FilePath, &jd.FileType, &jd.Title, &jd.ParsedText, &jd.UploadedAt); err != nil {
		return nil, err
	}
	jd.UploadedAt = jd.UploadedAt.UTC()
	return &jd, nil
}

// CreateJD inserts jd and sets its ID. UploadedAt defaults to now.
func (s *SQLStorage) CreateJD(ctx context.Context, jd *models.JobDescription) error {
	if jd.UploadedAt.IsZero() {
		jd.UploadedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx,
		`INSERT INTO jds (admin_id, filename, file_path, file_type, title, parsed_text, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jd.AdminID, jd.Filename, jd.FilePath, jd.FileType, jd.Title, jd.ParsedText, jd.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert job description: %w", err)
	}
	jd.ID = id
	return nil
}

// GetJD returns a job description by ID.
func (s *SQLStorage) GetJD(ctx context.Context, id int64) (*models.JobDescription, error) {
	jd, err := scanJD(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jdColumns+` FROM jds WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return jd, err
}

// UpdateJD replaces the file fields, title and parsed text of an existing job description.
func (s *SQLStorage) UpdateJD(ctx context.Context, jd *models.JobDescription) error {
	return s.execAffecting(ctx,
		`UPDATE jds SET filename = ?, file_path = ?, file_type = ?, title = ?, parsed_text = ?, uploaded_at = ?
		 WHERE id = ?`,
		jd.Filename, jd.FilePath, jd.FileType, jd.Title, jd.ParsedText, jd.UploadedAt.UTC(), jd.ID,
	)
}

// DeleteJD removes a job description. Evaluations referencing it are kept.
func (s *SQLStorage) DeleteJD(ctx context.Context, id int64) error {
	return s.execAffecting(ctx, `DELETE FROM jds WHERE id = ?`, id)
}

// ListJDs returns job descriptions matching f ordered by ID.
func (s *SQLStorage) ListJDs(ctx context.Context, f DocumentFilter) ([]*models.JobDescription, error) {
	where, args := documentWhere("admin_id", "uploaded_at", f)
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+jdColumns+` FROM jds`+where+` ORDER BY id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.JobDescription
	for rows.Next() {
		jd, err := scanJD(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, jd)
	}
	return out, rows.Err()
}

func documentWhere(ownerCol, timeCol string, f DocumentFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.OwnerID != nil {
		conds = append(conds, ownerCol+" = ?")
		args = append(args, *f.OwnerID)
	}
	if f.From != nil {
		conds = append(conds, timeCol+" >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, timeCol+" <= ?")
		args = append(args, f.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const evaluationColumns = `id, resume_id, jd_id, score, verdict, missing_skills, created_at`

func scanEvaluation(row interface{ Scan(...interface{}) error }) (*models.Evaluation, error) {
	var ev models.Evaluation
	var verdict, missing string
	if err := row.Scan(&ev.ID, &ev.ResumeID, &ev.JDID, &ev.Score, &verdict, &missing, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Verdict = models.Verdict(verdict)
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.MissingSkills = []string{}
	if missing != "" {
		if err := json.Unmarshal([]byte(missing), &ev.MissingSkills); err != nil {
			return nil, fmt.Errorf("failed to unmarshal missing skills: %w", err)
		}
	}
	return &ev, nil
}

func marshalSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("failed to marshal missing skills: %w", err)
	}
	return string(b), nil
}

// CreateEvaluation inserts ev. The UNIQUE (resume_id, jd_id) constraint makes the
// duplicate check atomic with the insert.
func (s *SQLStorage) CreateEvaluation(ctx context.Context, ev *models.Evaluation) error {
	missing, err := marshalSkills(ev.MissingSkills)
	if err != nil {
		return err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx,
		`INSERT INTO evaluations (resume_id, jd_id, score, verdict, missing_skills, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ResumeID, ev.JDID, ev.Score, string(ev.Verdict), missing, ev.CreatedAt.UTC(),
	)
	if err != nil {
		if s.dialect.unique(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}
	ev.ID = id
	if ev.MissingSkills == nil {
		ev.MissingSkills = []string{}
	}
	return nil
}

// GetEvaluation returns an evaluation by ID.
func (s *SQLStorage) GetEvaluation(ctx context.Context, id int64) (*models.Evaluation, error) {
	ev, err := scanEvaluation(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

// FindEvaluation returns the evaluation for a resume/JD pair.
func (s *SQLStorage) FindEvaluation(ctx context.Context, resumeID, jdID int64) (*models.Evaluation, error) {
	ev, err := scanEvaluation(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+evaluationColumns+` FROM evaluations WHERE resume_id = ? AND jd_id = ?`), resumeID, jdID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ev, err
}

// UpdateEvaluation applies patch in a transaction and returns the updated record.
func (s *SQLStorage) UpdateEvaluation(ctx context.Context, id int64, patch models.EvaluationPatch) (*models.Evaluation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ev, err := scanEvaluation(tx.QueryRowContext(ctx, s.rebind(`SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	patch.Apply(ev)
	missing, err := marshalSkills(ev.MissingSkills)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE evaluations SET score = ?, verdict = ?, missing_skills = ? WHERE id = ?`),
		ev.Score, string(ev.Verdict), missing, id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ev, nil
}

// DeleteEvaluation removes an evaluation by ID.
func (s *SQLStorage) DeleteEvaluation(ctx context.Context, id int64) error {
	return s.execAffecting(ctx, `DELETE FROM evaluations WHERE id = ?`, id)
}

// ListEvaluations returns evaluations matching f ordered by ID.
func (s *SQLStorage) ListEvaluations(ctx context.Context, f EvaluationFilter) ([]*models.Evaluation, error) {
	var conds []string
	var args []interface{}
	if f.UserID != nil {
		conds = append(conds, "resume_id IN (SELECT id FROM resumes WHERE user_id = ?)")
		args = append(args, *f.UserID)
	}
	if f.AdminID != nil {
		conds = append(conds, "jd_id IN (SELECT id FROM jds WHERE admin_id = ?)")
		args = append(args, *f.AdminID)
	}
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.To.UTC())
	}
	if f.MinScore != nil {
		conds = append(conds, "score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.Verdict != "" {
		conds = append(conds, `LOWER(verdict) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Verdict))+"%")
	}
	query := `SELECT ` + evaluationColumns + ` FROM evaluations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Stats returns record counts.
func (s *SQLStorage) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, c := range []struct {
		table string
		dst   *int64
	}{
		{"resumes", &st.Resumes},
		{"jds", &st.JDs},
		{"evaluations", &st.Evaluations},
	} {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return st, nil
}

// Close closes the database.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
