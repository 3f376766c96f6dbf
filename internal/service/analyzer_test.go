package service

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/bigkaa/lingvostream/vocab-module/internal/cache"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
	"github.com/bigkaa/lingvostream/vocab-module/internal/repository"
)

// knowledgeRepo строит заглушку, где known перечисляет известные
// пользователю леммы, а words — справочник уровень/ранг по леммам.
func knowledgeRepo(known map[string]bool, words map[string]*model.VocabularyEntry) *mockVocabularyRepo {
	return &mockVocabularyRepo{
		getUserKnowledgeBatchFn: func(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
			out := make(map[string]*model.UserWordKnowledge)
			for _, lemma := range lemmas {
				isKnown, ok := known[lemma]
				if !ok {
					continue
				}
				out[lemma] = &model.UserWordKnowledge{
					UserID: userID, Lemma: lemma, Language: language, IsKnown: isKnown,
				}
			}
			return out, nil
		},
		findWordFn: func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
			if entry, ok := words[lemma]; ok {
				return entry, nil
			}
			return nil, repository.ErrNotFound
		},
	}
}

func newTestAnalyzer(repo repository.VocabularyRepository, stopwords []string) *BlockingWordAnalyzer {
	lookup, _, _ := newTestLookup(repo, cache.NewMemoryBackend(100, time.Minute))
	return NewBlockingWordAnalyzer(lookup, stopwords, testLogger())
}

func segment(index int, tokens ...string) model.SubtitleSegment {
	return model.SubtitleSegment{Index: index, Tokens: tokens}
}

func TestAssessSegmentUnknownRatio(t *testing.T) {
	// 10 значимых токенов, 3 неизвестных
	tokens := []string{"w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8", "w9", "w10"}
	known := map[string]bool{
		"w4": true, "w5": true, "w6": true, "w7": true,
		"w8": true, "w9": true, "w10": true,
	}
	words := map[string]*model.VocabularyEntry{
		"w1": testEntry("w1", model.LevelA1, 10),
		"w2": testEntry("w2", model.LevelA1, 20),
		"w3": testEntry("w3", model.LevelA1, 30),
	}

	analyzer := newTestAnalyzer(knowledgeRepo(known, words), nil)
	ctx := context.Background()

	a, err := analyzer.AssessSegment(ctx, segment(0, tokens...), "user-1", "de", 0.3, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if math.Abs(a.UnknownRatio-0.3) > 1e-9 {
		t.Errorf("unknown_ratio = %v, ожидалось 0.3", a.UnknownRatio)
	}
	// Строгое сравнение: доля, равная порогу, НЕ блокирует
	if a.Blocked {
		t.Error("доля 0.3 при пороге 0.3 не должна блокировать")
	}

	a, err = analyzer.AssessSegment(ctx, segment(0, tokens...), "user-1", "de", 0.2, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !a.Blocked {
		t.Error("доля 0.3 при пороге 0.2 обязана блокировать")
	}
}

func TestAssessSegmentRarestFirst(t *testing.T) {
	known := map[string]bool{"ist": true}
	words := map[string]*model.VocabularyEntry{
		"haus":       testEntry("haus", model.LevelA1, 50),
		"unergiebig": testEntry("unergiebig", model.LevelB2, 9000),
	}
	analyzer := newTestAnalyzer(knowledgeRepo(known, words), []string{"das"})

	a, err := analyzer.AssessSegment(context.Background(),
		segment(3, "Das", "Haus", "ist", "unergiebig"),
		"user-1", "de", 0.5, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Значимые токены: haus, ist, unergiebig; неизвестны haus и unergiebig
	if math.Abs(a.UnknownRatio-2.0/3.0) > 1e-9 {
		t.Errorf("unknown_ratio = %v, ожидалось 2/3", a.UnknownRatio)
	}
	if !a.Blocked {
		t.Error("сегмент обязан быть заблокирован (2/3 > 0.5)")
	}
	// Самые редкие первыми: unergiebig (9000) перед haus (50)
	want := []string{"unergiebig", "haus"}
	if !reflect.DeepEqual(a.BlockingWords, want) {
		t.Errorf("blocking_words = %v, ожидалось %v", a.BlockingWords, want)
	}
}

func TestAssessSegmentEqualRankKeepsFirstOccurrence(t *testing.T) {
	words := map[string]*model.VocabularyEntry{
		"alpha": testEntry("alpha", model.LevelA1, 700),
		"beta":  testEntry("beta", model.LevelA1, 700),
		"gamma": testEntry("gamma", model.LevelA1, 700),
	}
	analyzer := newTestAnalyzer(knowledgeRepo(nil, words), nil)

	a, err := analyzer.AssessSegment(context.Background(),
		segment(0, "beta", "gamma", "alpha"),
		"user-1", "de", 0.0, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Равный ранг — порядок первого вхождения в сегменте
	want := []string{"beta", "gamma", "alpha"}
	if !reflect.DeepEqual(a.BlockingWords, want) {
		t.Errorf("blocking_words = %v, ожидалось %v", a.BlockingWords, want)
	}
}

func TestAssessSegmentCeilingTrigger(t *testing.T) {
	// 1 неизвестное из 10: доля 0.1 ниже порога, но слово выше потолка
	tokens := []string{"w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8", "w9", "habilitation"}
	known := map[string]bool{
		"w1": true, "w2": true, "w3": true, "w4": true, "w5": true,
		"w6": true, "w7": true, "w8": true, "w9": true,
	}
	words := map[string]*model.VocabularyEntry{
		"habilitation": testEntry("habilitation", model.LevelC2, 18000),
	}
	analyzer := newTestAnalyzer(knowledgeRepo(known, words), nil)

	a, err := analyzer.AssessSegment(context.Background(), segment(0, tokens...),
		"user-1", "de", 0.5, model.LevelB1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !a.Blocked {
		t.Error("одно слово выше потолка CEFR обязано блокировать сегмент")
	}
	if math.Abs(a.UnknownRatio-0.1) > 1e-9 {
		t.Errorf("unknown_ratio = %v, ожидалось 0.1", a.UnknownRatio)
	}
}

func TestAssessSegmentCeilingAppliesToKnownWords(t *testing.T) {
	// Оба слова отмечены известными, но fachsimpeln — C2 при потолке B1:
	// потолок действует независимо от отметок знания
	known := map[string]bool{"fachsimpeln": true, "haus": true}
	words := map[string]*model.VocabularyEntry{
		"fachsimpeln": testEntry("fachsimpeln", model.LevelC2, 21000),
		"haus":        testEntry("haus", model.LevelA1, 50),
	}
	analyzer := newTestAnalyzer(knowledgeRepo(known, words), nil)

	a, err := analyzer.AssessSegment(context.Background(),
		segment(0, "fachsimpeln", "haus"),
		"user-1", "de", 0.5, model.LevelB1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !a.Blocked {
		t.Error("известное слово выше потолка CEFR обязано блокировать сегмент")
	}
	if a.UnknownRatio != 0 {
		t.Errorf("unknown_ratio = %v, ожидалось 0 (оба слова известны)", a.UnknownRatio)
	}
	// Список блокирующих слов остаётся списком неизвестных лемм
	if len(a.BlockingWords) != 0 {
		t.Errorf("blocking_words = %v, ожидался пустой список", a.BlockingWords)
	}
	if a.Degraded {
		t.Error("вердикт без сбоев lookup'ов не должен быть degraded")
	}
}

func TestAssessSegmentNoContentTokens(t *testing.T) {
	// Пунктуация, числа и стоп-слова — значимых токенов нет
	analyzer := newTestAnalyzer(&mockVocabularyRepo{
		getUserKnowledgeBatchFn: func(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
			t.Error("сегмент без значимых токенов не должен опрашивать знания")
			return nil, nil
		},
	}, []string{"der", "die"})

	a, err := analyzer.AssessSegment(context.Background(),
		segment(7, "...", "42", "der", "die", "—"),
		"user-1", "de", 0.0, model.LevelA1)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if a.Blocked {
		t.Error("сегмент без значимых токенов никогда не блокируется")
	}
	if a.UnknownRatio != 0 {
		t.Errorf("unknown_ratio = %v, ожидалось 0", a.UnknownRatio)
	}
	if len(a.BlockingWords) != 0 {
		t.Errorf("blocking_words = %v, ожидался пустой список", a.BlockingWords)
	}
}

func TestAssessSegmentDegradedOnKnowledgeFailure(t *testing.T) {
	repo := &mockVocabularyRepo{
		getUserKnowledgeBatchFn: func(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
			return nil, errors.New("connection refused")
		},
		findWordFn: func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
			return nil, errors.New("connection refused")
		},
	}
	analyzer := newTestAnalyzer(repo, nil)

	a, err := analyzer.AssessSegment(context.Background(),
		segment(0, "haus", "baum"),
		"user-1", "de", 0.5, model.LevelC2)
	if err != nil {
		t.Fatalf("деградация не должна быть ошибкой: %v", err)
	}
	if !a.Degraded {
		t.Error("вердикт при сбое lookup'а обязан быть помечен degraded")
	}
	// Перестраховка в сторону блокировки: все токены неизвестны
	if !a.Blocked {
		t.Error("деградированный сегмент с долей 1.0 обязан быть заблокирован")
	}
	if a.UnknownRatio != 1.0 {
		t.Errorf("unknown_ratio = %v, ожидалось 1.0", a.UnknownRatio)
	}
}

func TestAssessSegmentDegradedOnWordInfoFailure(t *testing.T) {
	storeDown := false
	repo := &mockVocabularyRepo{
		getUserKnowledgeBatchFn: func(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
			return map[string]*model.UserWordKnowledge{}, nil
		},
		findWordFn: func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
			if storeDown {
				return nil, errors.New("connection refused")
			}
			return nil, repository.ErrNotFound
		},
	}
	analyzer := newTestAnalyzer(repo, nil)
	ctx := context.Background()

	// Отсутствие слова в справочнике — не деградация
	a, err := analyzer.AssessSegment(ctx, segment(0, "haus"), "user-1", "de", 0.0, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if a.Degraded {
		t.Error("ErrNotFound справочника не должен помечать вердикт degraded")
	}

	// Сбой хранилища при чтении справочника — деградация
	storeDown = true
	a, err = analyzer.AssessSegment(ctx, segment(0, "baum"), "user-1", "de", 0.0, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !a.Degraded {
		t.Error("сбой чтения справочника обязан помечать вердикт degraded")
	}
}

func TestAssessSegmentDuplicateTokensCountedPerOccurrence(t *testing.T) {
	words := map[string]*model.VocabularyEntry{
		"haus": testEntry("haus", model.LevelA1, 50),
	}
	analyzer := newTestAnalyzer(knowledgeRepo(map[string]bool{"baum": true}, words), nil)

	a, err := analyzer.AssessSegment(context.Background(),
		segment(0, "haus", "haus", "baum", "baum"),
		"user-1", "de", 0.4, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Доля считается по вхождениям (2 из 4), список — по уникальным леммам
	if math.Abs(a.UnknownRatio-0.5) > 1e-9 {
		t.Errorf("unknown_ratio = %v, ожидалось 0.5", a.UnknownRatio)
	}
	if !reflect.DeepEqual(a.BlockingWords, []string{"haus"}) {
		t.Errorf("blocking_words = %v, ожидалось [haus]", a.BlockingWords)
	}
}

func TestAssessSegmentValidation(t *testing.T) {
	analyzer := newTestAnalyzer(&mockVocabularyRepo{}, nil)
	ctx := context.Background()
	seg := segment(0, "haus")

	cases := []struct {
		name      string
		userID    string
		language  string
		threshold float64
		ceiling   model.CEFRLevel
	}{
		{"пустой пользователь", "", "de", 0.5, model.LevelB1},
		{"некорректный язык", "user-1", "german", 0.5, model.LevelB1},
		{"порог меньше нуля", "user-1", "de", -0.1, model.LevelB1},
		{"порог больше единицы", "user-1", "de", 1.1, model.LevelB1},
		{"некорректный потолок", "user-1", "de", 0.5, model.CEFRLevel("D1")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := analyzer.AssessSegment(ctx, seg, tc.userID, tc.language, tc.threshold, tc.ceiling)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ожидалась ErrValidation, получено %v", err)
			}
		})
	}
}

func TestAssessSegments(t *testing.T) {
	words := map[string]*model.VocabularyEntry{
		"unergiebig": testEntry("unergiebig", model.LevelB2, 9000),
	}
	analyzer := newTestAnalyzer(knowledgeRepo(map[string]bool{"haus": true}, words), nil)

	segments := []model.SubtitleSegment{
		segment(0, "haus"),
		segment(1, "unergiebig"),
	}
	assessments, err := analyzer.AssessSegments(context.Background(), segments,
		"user-1", "de", 0.5, model.LevelC2)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(assessments) != 2 {
		t.Fatalf("оценок %d, ожидалось 2", len(assessments))
	}
	if assessments[0].Blocked {
		t.Error("сегмент 0 (известное слово) не должен блокироваться")
	}
	if !assessments[1].Blocked {
		t.Error("сегмент 1 (неизвестное слово, доля 1.0) обязан блокироваться")
	}
	if assessments[1].SegmentIndex != 1 {
		t.Errorf("индекс сегмента = %d, ожидался 1", assessments[1].SegmentIndex)
	}
}
