// Пакет repository — слой доступа к словарному хранилищу PostgreSQL.
// Vocab Module — read-mostly потребитель таблиц vocabulary_entries и
// subtitle_segments; запись идёт только в user_word_knowledge
// (отметка слова известным/неизвестным).
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrWordUnknown — пара (лемма, язык) отсутствует в справочнике слов.
	// Отметка знания допускается только для слов из каталога.
	ErrWordUnknown = errors.New("слово отсутствует в справочнике")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
