package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Article mirrors §3's Article record.
type Article struct {
	ID        int64
	Title     string
	Authors   []string
	Abstract  *string
	Year      *int
	SourceURL *string
	ArxivID   *string
	S2ID      *string
	PDFPath   *string
	CreatedAt string
	UpdatedAt string
	Tags      []string
}

// Articles is the typed view over the shared DB for article operations.
type Articles struct {
	db *DB
}

// NewArticles returns an Articles store bound to db.
func NewArticles(db *DB) *Articles { return &Articles{db: db} }

// Create inserts a new article. Authors are stored as a JSON array;
// id is SQLite's rowid, one more than the largest id present, so
// unlike tasks and events the gaps left by deleted articles are not
// refilled (only a deleted highest id can come back).
func (a *Articles) Create(title string, authors []string, abstract *string, year *int, sourceURL, arxivID, s2ID, pdfPath *string) (Article, error) {
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return Article{}, fmt.Errorf("articles: create: marshal authors: %w", err)
	}

	now := nowISO()
	res, err := a.db.conn.Exec(
		`INSERT INTO articles (title, authors, abstract, year, source_url, arxiv_id, s2_id, pdf_path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title, string(authorsJSON), abstract, year, sourceURL, arxivID, s2ID, pdfPath, now, now,
	)
	if err != nil {
		return Article{}, fmt.Errorf("articles: create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Article{}, fmt.Errorf("articles: create: %w", err)
	}

	return Article{
		ID: id, Title: title, Authors: authors, Abstract: abstract, Year: year,
		SourceURL: sourceURL, ArxivID: arxivID, S2ID: s2ID, PDFPath: pdfPath,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

// Get fetches one article, including its tags, by id.
func (a *Articles) Get(id int64) (Article, error) {
	var art Article
	var authorsJSON string
	var abstract, sourceURL, arxivID, s2ID, pdfPath sql.NullString
	var year sql.NullInt64

	err := a.db.conn.QueryRow(
		`SELECT id, title, authors, abstract, year, source_url, arxiv_id, s2_id, pdf_path, created_at, updated_at
		 FROM articles WHERE id = ?`, id,
	).Scan(&art.ID, &art.Title, &authorsJSON, &abstract, &year, &sourceURL, &arxivID, &s2ID, &pdfPath, &art.CreatedAt, &art.UpdatedAt)
	if err == sql.ErrNoRows {
		return Article{}, fmt.Errorf("articles: not found: %d", id)
	}
	if err != nil {
		return Article{}, fmt.Errorf("articles: get %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(authorsJSON), &art.Authors); err != nil {
		return Article{}, fmt.Errorf("articles: get %d: unmarshal authors: %w", id, err)
	}
	art.Abstract = nullableString(abstract)
	art.SourceURL = nullableString(sourceURL)
	art.ArxivID = nullableString(arxivID)
	art.S2ID = nullableString(s2ID)
	art.PDFPath = nullableString(pdfPath)
	if year.Valid {
		y := int(year.Int64)
		art.Year = &y
	}

	tags, err := a.tagsFor(id)
	if err != nil {
		return Article{}, err
	}
	art.Tags = tags
	return art, nil
}

func (a *Articles) tagsFor(articleID int64) ([]string, error) {
	rows, err := a.db.conn.Query(`SELECT tag FROM article_tags WHERE article_id = ? ORDER BY tag ASC`, articleID)
	if err != nil {
		return nil, fmt.Errorf("articles: tags %d: %w", articleID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// List returns every article, optionally filtered to those carrying tag.
func (a *Articles) List(tag *string) ([]Article, error) {
	var ids []int64
	var rows *sql.Rows
	var err error
	if tag != nil {
		rows, err = a.db.conn.Query(
			`SELECT DISTINCT a.id FROM articles a
			 JOIN article_tags t ON t.article_id = a.id
			 WHERE t.tag = ? ORDER BY a.id ASC`, *tag)
	} else {
		rows, err = a.db.conn.Query(`SELECT id FROM articles ORDER BY id ASC`)
	}
	if err != nil {
		return nil, fmt.Errorf("articles: list: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Article, 0, len(ids))
	for _, id := range ids {
		art, err := a.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, art)
	}
	return out, nil
}

// Update applies non-nil fields to the article with the given id.
func (a *Articles) Update(id int64, title *string, authors []string, abstract *string, year *int, sourceURL, arxivID, s2ID, pdfPath *string) (Article, error) {
	existing, err := a.Get(id)
	if err != nil {
		return Article{}, err
	}
	if title != nil {
		existing.Title = *title
	}
	if authors != nil {
		existing.Authors = authors
	}
	if abstract != nil {
		existing.Abstract = abstract
	}
	if year != nil {
		existing.Year = year
	}
	if sourceURL != nil {
		existing.SourceURL = sourceURL
	}
	if arxivID != nil {
		existing.ArxivID = arxivID
	}
	if s2ID != nil {
		existing.S2ID = s2ID
	}
	if pdfPath != nil {
		existing.PDFPath = pdfPath
	}
	existing.UpdatedAt = nowISO()

	authorsJSON, err := json.Marshal(existing.Authors)
	if err != nil {
		return Article{}, fmt.Errorf("articles: update %d: marshal authors: %w", id, err)
	}

	_, err = a.db.conn.Exec(
		`UPDATE articles SET title = ?, authors = ?, abstract = ?, year = ?, source_url = ?, arxiv_id = ?, s2_id = ?, pdf_path = ?, updated_at = ?
		 WHERE id = ?`,
		existing.Title, string(authorsJSON), existing.Abstract, existing.Year, existing.SourceURL,
		existing.ArxivID, existing.S2ID, existing.PDFPath, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return Article{}, fmt.Errorf("articles: update %d: %w", id, err)
	}
	return existing, nil
}

// Delete removes an article by id; its tags cascade via the foreign
// key declared in migrate().
func (a *Articles) Delete(id int64) error {
	_, err := a.db.conn.Exec(`DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("articles: delete %d: %w", id, err)
	}
	return nil
}

// AddTag associates tag with articleID; duplicates are silently
// ignored via the table's UNIQUE constraint.
func (a *Articles) AddTag(articleID int64, tag string) error {
	_, err := a.db.conn.Exec(
		`INSERT OR IGNORE INTO article_tags (article_id, tag) VALUES (?, ?)`, articleID, tag,
	)
	if err != nil {
		return fmt.Errorf("articles: add tag %d/%s: %w", articleID, tag, err)
	}
	return nil
}

// RemoveTag disassociates tag from articleID.
func (a *Articles) RemoveTag(articleID int64, tag string) error {
	_, err := a.db.conn.Exec(
		`DELETE FROM article_tags WHERE article_id = ? AND tag = ?`, articleID, tag,
	)
	if err != nil {
		return fmt.Errorf("articles: remove tag %d/%s: %w", articleID, tag, err)
	}
	return nil
}

// ListTags returns every distinct tag in use across all articles.
func (a *Articles) ListTags() ([]string, error) {
	rows, err := a.db.conn.Query(`SELECT DISTINCT tag FROM article_tags ORDER BY tag ASC`)
	if err != nil {
		return nil, fmt.Errorf("articles: list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
