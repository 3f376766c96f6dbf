// keys.go — построение ключей кэша. Единое место, чтобы форматы
// не расползались по коду.
//
// Пространства ключей:
//   word:{language}:{lemma}        — справочная запись слова
//   level:{language}:{level}       — список слов уровня
//   know:{language}:{lemma}:{user} — снимок знания слова пользователем
//
// В knowledge-ключе лемма стоит ПЕРЕД пользователем: инвалидация слова
// находит снимки всех пользователей одним префиксным scan'ом.
package cache

// KeyWord возвращает ключ справочной записи слова.
func KeyWord(language, lemma string) string {
	return "word:" + language + ":" + lemma
}

// KeyLevel возвращает ключ списка слов уровня.
func KeyLevel(language, level string) string {
	return "level:" + language + ":" + level
}

// KeyKnowledge возвращает ключ снимка знания слова пользователем.
func KeyKnowledge(language, lemma, userID string) string {
	return "know:" + language + ":" + lemma + ":" + userID
}

// PrefixKnowledgeWord возвращает префикс всех снимков знания одного слова
// (все пользователи) — для инвалидации по слову.
func PrefixKnowledgeWord(language, lemma string) string {
	return "know:" + language + ":" + lemma + ":"
}

// PrefixWordLanguage возвращает префикс всех справочных записей языка.
func PrefixWordLanguage(language string) string {
	return "word:" + language + ":"
}

// PrefixLevelLanguage возвращает префикс всех списков уровней языка.
func PrefixLevelLanguage(language string) string {
	return "level:" + language + ":"
}

// PrefixLevel возвращает префикс записей конкретного уровня языка.
func PrefixLevel(language, level string) string {
	return "level:" + language + ":" + level
}

// PrefixKnowledgeLanguage возвращает префикс всех снимков знания языка.
func PrefixKnowledgeLanguage(language string) string {
	return "know:" + language + ":"
}
