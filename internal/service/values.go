// values.go — типизированные значения кэша по пространствам ключей.
// Каждое пространство имеет собственный тегированный тип с версией формата:
// ошибка десериализации ловится на границе кэша (трактуется как промах,
// запись выбрасывается), а не всплывает глубже в бизнес-логике.
package service

import (
	"encoding/json"
	"fmt"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// cacheValueVersion — версия формата значений кэша. Инкрементируется
// при несовместимом изменении структур: старые записи при чтении
// отбрасываются как промах.
const cacheValueVersion = 1

// WordInfoValue — значение пространства word:*.
type WordInfoValue struct {
	// V — версия формата
	V int `json:"v"`
	// Entry — справочная запись слова
	Entry *model.VocabularyEntry `json:"entry"`
}

// LevelListValue — значение пространства level:*.
type LevelListValue struct {
	// V — версия формата
	V int `json:"v"`
	// Entries — слова уровня, упорядоченные по частотному рангу
	Entries []*model.VocabularyEntry `json:"entries"`
}

// KnowledgeValue — значение пространства know:*.
type KnowledgeValue struct {
	// V — версия формата
	V int `json:"v"`
	// Knowledge — снимок знания слова пользователем
	Knowledge *model.UserWordKnowledge `json:"knowledge"`
}

// encodeWordInfo сериализует справочную запись для кэша.
func encodeWordInfo(entry *model.VocabularyEntry) ([]byte, error) {
	return json.Marshal(WordInfoValue{V: cacheValueVersion, Entry: entry})
}

// decodeWordInfo десериализует значение пространства word:*.
func decodeWordInfo(data []byte) (*model.VocabularyEntry, error) {
	var v WordInfoValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("ошибка декодирования WordInfoValue: %w", err)
	}
	if v.V != cacheValueVersion || v.Entry == nil {
		return nil, fmt.Errorf("несовместимая версия WordInfoValue: %d", v.V)
	}
	return v.Entry, nil
}

// encodeLevelList сериализует список слов уровня для кэша.
func encodeLevelList(entries []*model.VocabularyEntry) ([]byte, error) {
	return json.Marshal(LevelListValue{V: cacheValueVersion, Entries: entries})
}

// decodeLevelList десериализует значение пространства level:*.
func decodeLevelList(data []byte) ([]*model.VocabularyEntry, error) {
	var v LevelListValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("ошибка декодирования LevelListValue: %w", err)
	}
	if v.V != cacheValueVersion {
		return nil, fmt.Errorf("несовместимая версия LevelListValue: %d", v.V)
	}
	return v.Entries, nil
}

// encodeKnowledge сериализует снимок знания для кэша.
func encodeKnowledge(k *model.UserWordKnowledge) ([]byte, error) {
	return json.Marshal(KnowledgeValue{V: cacheValueVersion, Knowledge: k})
}

// decodeKnowledge десериализует значение пространства know:*.
func decodeKnowledge(data []byte) (*model.UserWordKnowledge, error) {
	var v KnowledgeValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("ошибка декодирования KnowledgeValue: %w", err)
	}
	if v.V != cacheValueVersion || v.Knowledge == nil {
		return nil, fmt.Errorf("несовместимая версия KnowledgeValue: %d", v.V)
	}
	return v.Knowledge, nil
}
