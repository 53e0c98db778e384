package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/types"
)

// maxSearchResults caps a verse text search
const maxSearchResults = 100

// ImportVerse is one row of a translation import
type ImportVerse struct {
	BookNumber int
	Chapter    int
	Verse      int
	Text       string
}

// VerseRepository reads and loads verse texts keyed by translation and
// canonical book number
type VerseRepository struct {
	db *PostgresDB
}

// NewVerseRepository creates a new verse repository
func NewVerseRepository(db *PostgresDB) *VerseRepository {
	return &VerseRepository{db: db}
}

// GetChapter returns the verses of one chapter in verse order
func (r *VerseRepository) GetChapter(ctx context.Context, translation string, book bible.Book, chapter int) ([]types.Verse, error) {
	query := `
		SELECT verse_no, verse_text
		FROM bible_verses
		WHERE translation_code = $1 AND book_no = $2 AND chapter_no = $3
		ORDER BY verse_no
	`

	rows, err := r.db.Pool().Query(ctx, query, translation, book.Number, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapter: %w", err)
	}
	defer rows.Close()

	var verses []types.Verse
	for rows.Next() {
		v := types.Verse{Book: book.ID, Chapter: chapter}
		if err := rows.Scan(&v.Number, &v.Text); err != nil {
			return nil, fmt.Errorf("failed to scan verse: %w", err)
		}
		verses = append(verses, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verses: %w", err)
	}

	return verses, nil
}

// GetVerses returns the requested verses in the order given. Keys whose
// text is missing are skipped.
func (r *VerseRepository) GetVerses(ctx context.Context, translation string, keys []types.VerseKey) ([]types.Verse, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	bookNos := make([]int32, 0, len(keys))
	chapters := make([]int32, 0, len(keys))
	verseNos := make([]int32, 0, len(keys))
	for _, k := range keys {
		b, ok := bible.LookupBook(k.Book)
		if !ok {
			return nil, fmt.Errorf("unknown book %q", k.Book)
		}
		bookNos = append(bookNos, int32(b.Number))    // #nosec G115 - 1..66
		chapters = append(chapters, int32(k.Chapter)) // #nosec G115 - validated chapter
		verseNos = append(verseNos, int32(k.Verse))   // #nosec G115 - validated verse
	}

	query := `
		SELECT v.book_no, v.chapter_no, v.verse_no, v.verse_text
		FROM bible_verses v
		JOIN UNNEST($2::int[], $3::int[], $4::int[]) AS k(book_no, chapter_no, verse_no)
			ON v.book_no = k.book_no AND v.chapter_no = k.chapter_no AND v.verse_no = k.verse_no
		WHERE v.translation_code = $1
	`

	rows, err := r.db.Pool().Query(ctx, query, translation, bookNos, chapters, verseNos)
	if err != nil {
		return nil, fmt.Errorf("failed to query verses: %w", err)
	}
	defer rows.Close()

	texts := make(map[types.VerseKey]string, len(keys))
	for rows.Next() {
		var bookNo, chapter, verse int
		var text string
		if err := rows.Scan(&bookNo, &chapter, &verse, &text); err != nil {
			return nil, fmt.Errorf("failed to scan verse: %w", err)
		}
		b, _ := bible.ByNumber(bookNo)
		texts[types.VerseKey{Book: b.ID, Chapter: chapter, Verse: verse}] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verses: %w", err)
	}

	out := make([]types.Verse, 0, len(keys))
	for _, k := range keys {
		b, _ := bible.LookupBook(k.Book)
		key := types.VerseKey{Book: b.ID, Chapter: k.Chapter, Verse: k.Verse}
		if text, ok := texts[key]; ok {
			out = append(out, types.Verse{Book: key.Book, Chapter: key.Chapter, Number: key.Verse, Text: text})
		}
	}
	return out, nil
}

// Search returns verses whose text contains query, in canonical order
func (r *VerseRepository) Search(ctx context.Context, translation, query string, limit int) ([]types.Verse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	sql := `
		SELECT book_no, chapter_no, verse_no, verse_text
		FROM bible_verses
		WHERE translation_code = $1 AND verse_text ILIKE $2 ESCAPE '\'
		ORDER BY book_no, chapter_no, verse_no
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, sql, translation, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search verses: %w", err)
	}
	defer rows.Close()

	var out []types.Verse
	for rows.Next() {
		var bookNo int
		var v types.Verse
		if err := rows.Scan(&bookNo, &v.Chapter, &v.Number, &v.Text); err != nil {
			return nil, fmt.Errorf("failed to scan verse: %w", err)
		}
		if b, ok := bible.ByNumber(bookNo); ok {
			v.Book = b.ID
		}
		out = append(out, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return out, nil
}

// escapeLike escapes the LIKE wildcards in s
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DeleteTranslation removes every verse of a translation and returns the
// number of rows deleted
func (r *VerseRepository) DeleteTranslation(ctx context.Context, translation string) (int64, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM bible_verses WHERE translation_code = $1`, translation)
	if err != nil {
		return 0, fmt.Errorf("failed to delete translation: %w", err)
	}
	return tag.RowsAffected(), nil
}

// BulkInsert copies a batch of verses for one translation
func (r *VerseRepository) BulkInsert(ctx context.Context, translation string, verses []ImportVerse) (int64, error) {
	if len(verses) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, len(verses))
	for i, v := range verses {
		rows[i] = []interface{}{
			translation,
			int16(v.BookNumber), // #nosec G115 - 1..66
			int16(v.Chapter),    // #nosec G115 - chapters < 200
			int16(v.Verse),      // #nosec G115 - verses < 200
			v.Text,
		}
	}

	n, err := r.db.Pool().CopyFrom(
		ctx,
		pgx.Identifier{"bible_verses"},
		[]string{"translation_code", "book_no", "chapter_no", "verse_no", "verse_text"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy verses: %w", err)
	}

	return n, nil
}
