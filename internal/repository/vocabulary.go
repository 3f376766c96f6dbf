package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// entryColumns — список столбцов таблицы vocabulary_entries для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const entryColumns = `lemma, language, cefr_level, frequency_rank`

// knowledgeColumns — список столбцов таблицы user_word_knowledge.
const knowledgeColumns = `user_id, lemma, language, is_known, confidence, review_count`

// VocabularyRepository — интерфейс доступа к словарному хранилищу.
// Справочник слов — read-only; знание пользователя — upsert через SetUserKnowledge.
type VocabularyRepository interface {
	// FindWord возвращает справочную запись слова или ErrNotFound.
	FindWord(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error)
	// FindWordsByLevel возвращает все слова языка на указанном уровне CEFR,
	// упорядоченные по частотному рангу (частые первыми).
	FindWordsByLevel(ctx context.Context, language string, level model.CEFRLevel) ([]*model.VocabularyEntry, error)
	// GetUserKnowledge возвращает снимок знания слова пользователем или ErrNotFound.
	GetUserKnowledge(ctx context.Context, userID, language, lemma string) (*model.UserWordKnowledge, error)
	// GetUserKnowledgeBatch возвращает снимки знания для набора лемм.
	// Леммы без записи в результат не попадают (вызывающий трактует их как неизвестные).
	GetUserKnowledgeBatch(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error)
	// SetUserKnowledge отмечает слово известным/неизвестным (upsert).
	// Пара (лемма, язык) обязана существовать в справочнике — иначе ErrWordUnknown.
	SetUserKnowledge(ctx context.Context, userID, language, lemma string, isKnown bool) error
}

// vocabularyRepo — реализация VocabularyRepository через pgx.
type vocabularyRepo struct {
	db DBTX
}

// NewVocabularyRepository создаёт репозиторий словарного хранилища.
func NewVocabularyRepository(db DBTX) VocabularyRepository {
	return &vocabularyRepo{db: db}
}

// FindWord возвращает справочную запись слова или ErrNotFound.
func (r *vocabularyRepo) FindWord(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM vocabulary_entries WHERE language = $1 AND lemma = $2`,
		entryColumns,
	)

	e := &model.VocabularyEntry{}
	err := r.db.QueryRow(ctx, query, language, lemma).Scan(
		&e.Lemma, &e.Language, &e.Level, &e.FrequencyRank,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения слова: %w", err)
	}
	return e, nil
}

// FindWordsByLevel возвращает слова языка на уровне level,
// упорядоченные по частотному рангу.
func (r *vocabularyRepo) FindWordsByLevel(ctx context.Context, language string, level model.CEFRLevel) ([]*model.VocabularyEntry, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM vocabulary_entries
		 WHERE language = $1 AND cefr_level = $2
		 ORDER BY frequency_rank ASC`,
		entryColumns,
	)

	rows, err := r.db.Query(ctx, query, language, string(level))
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки слов уровня %s: %w", level, err)
	}
	defer rows.Close()

	var result []*model.VocabularyEntry
	for rows.Next() {
		e := &model.VocabularyEntry{}
		if err := rows.Scan(&e.Lemma, &e.Language, &e.Level, &e.FrequencyRank); err != nil {
			return nil, fmt.Errorf("ошибка сканирования слова: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

// GetUserKnowledge возвращает снимок знания слова пользователем или ErrNotFound.
func (r *vocabularyRepo) GetUserKnowledge(ctx context.Context, userID, language, lemma string) (*model.UserWordKnowledge, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM user_word_knowledge
		 WHERE user_id = $1 AND language = $2 AND lemma = $3`,
		knowledgeColumns,
	)

	k := &model.UserWordKnowledge{}
	err := r.db.QueryRow(ctx, query, userID, language, lemma).Scan(
		&k.UserID, &k.Lemma, &k.Language, &k.IsKnown, &k.Confidence, &k.ReviewCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения знания слова: %w", err)
	}
	return k, nil
}

// GetUserKnowledgeBatch возвращает снимки знания для набора лемм одним запросом.
func (r *vocabularyRepo) GetUserKnowledgeBatch(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
	result := make(map[string]*model.UserWordKnowledge, len(lemmas))
	if len(lemmas) == 0 {
		return result, nil
	}

	query, args := buildKnowledgeBatchQuery(userID, language, lemmas)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка batch-выборки знаний: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		k := &model.UserWordKnowledge{}
		if err := rows.Scan(&k.UserID, &k.Lemma, &k.Language, &k.IsKnown, &k.Confidence, &k.ReviewCount); err != nil {
			return nil, fmt.Errorf("ошибка сканирования знания: %w", err)
		}
		result[k.Lemma] = k
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

// SetUserKnowledge отмечает слово известным/неизвестным (upsert).
// Повторная отметка увеличивает review_count; confidence сдвигается
// к 1.0 при is_known=true и к 0.0 при is_known=false.
func (r *vocabularyRepo) SetUserKnowledge(ctx context.Context, userID, language, lemma string, isKnown bool) error {
	// Слово обязано существовать в справочнике — FK защищает на уровне БД,
	// но проверяем явно, чтобы вернуть осмысленную ошибку вместо constraint violation.
	if _, err := r.FindWord(ctx, language, lemma); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrWordUnknown
		}
		return err
	}

	query := `
		INSERT INTO user_word_knowledge (user_id, lemma, language, is_known, confidence, review_count)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN 0.6 ELSE 0.0 END, 1)
		ON CONFLICT (user_id, lemma, language) DO UPDATE SET
			is_known     = EXCLUDED.is_known,
			confidence   = CASE WHEN EXCLUDED.is_known
			               THEN LEAST(1.0, user_word_knowledge.confidence + 0.2)
			               ELSE GREATEST(0.0, user_word_knowledge.confidence - 0.4) END,
			review_count = user_word_knowledge.review_count + 1,
			updated_at   = now()`

	if _, err := r.db.Exec(ctx, query, userID, lemma, language, isKnown); err != nil {
		return fmt.Errorf("ошибка отметки знания слова: %w", err)
	}
	return nil
}

// buildKnowledgeBatchQuery строит SELECT c IN-списком лемм.
// Нумерация $-параметров: $1 = user_id, $2 = language, $3..$N — леммы.
func buildKnowledgeBatchQuery(userID, language string, lemmas []string) (query string, args []any) {
	placeholders := make([]string, 0, len(lemmas))
	args = make([]any, 0, len(lemmas)+2)
	args = append(args, userID, language)

	for i, lemma := range lemmas {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		args = append(args, lemma)
	}

	query = fmt.Sprintf(
		`SELECT %s FROM user_word_knowledge
		 WHERE user_id = $1 AND language = $2 AND lemma IN (%s)`,
		knowledgeColumns, strings.Join(placeholders, ", "),
	)
	return query, args
}
