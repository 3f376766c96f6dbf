package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// segmentColumns — список столбцов таблицы subtitle_segments.
const segmentColumns = `segment_index, start_ms, end_ms, text, tokens`

// SegmentRepository — интерфейс доступа к сегментам субтитров.
// Сегменты пишет внешний пайплайн транскрипции/лемматизации,
// Vocab Module их только читает.
type SegmentRepository interface {
	// ListByVideo возвращает сегменты видео в порядке следования.
	// Пустой результат — валидный случай (видео без субтитров), не ошибка.
	ListByVideo(ctx context.Context, videoID string) ([]model.SubtitleSegment, error)
}

// segmentRepo — реализация SegmentRepository через pgx.
type segmentRepo struct {
	db DBTX
}

// NewSegmentRepository создаёт репозиторий сегментов субтитров.
func NewSegmentRepository(db DBTX) SegmentRepository {
	return &segmentRepo{db: db}
}

// ListByVideo возвращает сегменты видео, упорядоченные по segment_index.
func (r *segmentRepo) ListByVideo(ctx context.Context, videoID string) ([]model.SubtitleSegment, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM subtitle_segments
		 WHERE video_id = $1
		 ORDER BY segment_index ASC`,
		segmentColumns,
	)

	rows, err := r.db.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки сегментов видео: %w", err)
	}
	defer rows.Close()

	var result []model.SubtitleSegment
	for rows.Next() {
		var (
			seg            model.SubtitleSegment
			startMS, endMS int64
		)
		if err := rows.Scan(&seg.Index, &startMS, &endMS, &seg.Text, &seg.Tokens); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сегмента: %w", err)
		}
		seg.StartTime = time.Duration(startMS) * time.Millisecond
		seg.EndTime = time.Duration(endMS) * time.Millisecond
		result = append(result, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}
