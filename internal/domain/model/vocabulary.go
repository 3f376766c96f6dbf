// Пакет model — доменные модели Vocab Module.
// VocabularyEntry и UserWordKnowledge — маппинг таблиц словарного хранилища
// (vocabulary_entries, user_word_knowledge). Кэш-слой использует эти
// структуры только для чтения.
package model

import (
	"fmt"
	"strings"
	"time"
)

// CEFRLevel — уровень сложности слова по шкале CEFR (A1 — самый простой,
// C2 — самый сложный). Хранится как строка, сравнивается по весу.
type CEFRLevel string

// Уровни CEFR в порядке возрастания сложности.
const (
	LevelA1 CEFRLevel = "A1"
	LevelA2 CEFRLevel = "A2"
	LevelB1 CEFRLevel = "B1"
	LevelB2 CEFRLevel = "B2"
	LevelC1 CEFRLevel = "C1"
	LevelC2 CEFRLevel = "C2"
)

// cefrWeight — вес уровня для сравнения. Неизвестный уровень — вес 0.
var cefrWeight = map[CEFRLevel]int{
	LevelA1: 1,
	LevelA2: 2,
	LevelB1: 3,
	LevelB2: 4,
	LevelC1: 5,
	LevelC2: 6,
}

// ParseCEFRLevel преобразует строку в CEFRLevel (регистронезависимо).
// Возвращает ошибку для неизвестного уровня.
func ParseCEFRLevel(s string) (CEFRLevel, error) {
	level := CEFRLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := cefrWeight[level]; !ok {
		return "", fmt.Errorf("неизвестный уровень CEFR %q, допустимые: A1, A2, B1, B2, C1, C2", s)
	}
	return level, nil
}

// Valid сообщает, является ли уровень одним из шести уровней CEFR.
func (l CEFRLevel) Valid() bool {
	_, ok := cefrWeight[l]
	return ok
}

// Above сообщает, является ли уровень строго сложнее указанного потолка.
func (l CEFRLevel) Above(ceiling CEFRLevel) bool {
	return cefrWeight[l] > cefrWeight[ceiling]
}

// AllLevels возвращает все уровни CEFR в порядке возрастания сложности.
func AllLevels() []CEFRLevel {
	return []CEFRLevel{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}
}

// ValidateLanguage проверяет код языка (двухбуквенный ISO 639-1, нижний регистр).
func ValidateLanguage(language string) error {
	if len(language) != 2 {
		return fmt.Errorf("некорректный код языка %q: ожидается двухбуквенный ISO 639-1", language)
	}
	for _, r := range language {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("некорректный код языка %q: допустимы только строчные латинские буквы", language)
		}
	}
	return nil
}

// ValidateLemma проверяет лемму: непустая, без пробельных символов по краям.
func ValidateLemma(lemma string) error {
	if lemma == "" {
		return fmt.Errorf("пустая лемма")
	}
	if strings.TrimSpace(lemma) != lemma {
		return fmt.Errorf("лемма %q содержит пробельные символы по краям", lemma)
	}
	return nil
}

// VocabularyEntry — справочная запись слова в словаре.
// Неизменяемые данные: создаются при загрузке словаря, кэш-слой их не мутирует.
type VocabularyEntry struct {
	// Lemma — словарная (начальная) форма слова, канонический ключ поиска
	Lemma string `json:"lemma"`
	// Language — код языка (ISO 639-1)
	Language string `json:"language"`
	// Level — уровень сложности по CEFR
	Level CEFRLevel `json:"cefr_level"`
	// FrequencyRank — частотный ранг слова (1 — самое частое; больше = реже)
	FrequencyRank int `json:"frequency_rank"`
}

// UserWordKnowledge — снимок знания слова пользователем.
// Владелец данных — словарное хранилище; кэш держит read-only снимки.
type UserWordKnowledge struct {
	// UserID — идентификатор пользователя (sub из JWT)
	UserID string `json:"user_id"`
	// Lemma — словарная форма слова
	Lemma string `json:"lemma"`
	// Language — код языка
	Language string `json:"language"`
	// IsKnown — отмечено ли слово как известное
	IsKnown bool `json:"is_known"`
	// Confidence — уверенность в знании слова, [0, 1]
	Confidence float64 `json:"confidence"`
	// ReviewCount — количество повторений/отметок слова
	ReviewCount int `json:"review_count"`
}

// SubtitleSegment — сегмент субтитров с лемматизированными токенами.
// Производится внешним пайплайном транскрипции/лемматизации, здесь — read-only.
type SubtitleSegment struct {
	// Index — порядковый номер сегмента в видео
	Index int `json:"index"`
	// StartTime — начало сегмента от начала видео
	StartTime time.Duration `json:"start_time"`
	// EndTime — конец сегмента от начала видео
	EndTime time.Duration `json:"end_time"`
	// Text — исходный текст сегмента
	Text string `json:"text"`
	// Tokens — упорядоченная последовательность лемм сегмента
	Tokens []string `json:"tokens"`
}

// BlockingAssessment — вердикт сложности одного сегмента.
// Вычисляется заново на каждый запрос и не персистится
// (полностью выводим из входных данных).
type BlockingAssessment struct {
	// SegmentIndex — номер оценённого сегмента
	SegmentIndex int `json:"segment_index"`
	// Blocked — true, если сегмент слишком сложен для показа без фильтрации
	Blocked bool `json:"blocked"`
	// UnknownRatio — доля неизвестных слов среди значимых токенов
	UnknownRatio float64 `json:"unknown_ratio"`
	// BlockingWords — неизвестные леммы, самые редкие первыми
	BlockingWords []string `json:"blocking_words"`
	// Degraded — true, если часть lookup'ов не удалась и вердикт
	// вычислен с перестраховкой в сторону блокировки
	Degraded bool `json:"degraded"`
}
