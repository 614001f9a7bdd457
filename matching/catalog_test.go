package matching

import "testing"

func poolSnapshot() []CatalogItem {
	return []CatalogItem{
		{Article: "A1", ProjectCode: "П-100", CabinetCode: "ШУ-1"},
		{Article: "A2", ProjectCode: "П-100", CabinetCode: "ШУ-2"},
		{Article: "A3", ProjectCode: "П-200", CabinetCode: "ШУ-1"},
	}
}

func TestSelectPool(t *testing.T) {
	snapshot := poolSnapshot()

	tests := []struct {
		name    string
		project string
		cabinet string
		want    []string
	}{
		{"без фильтров весь каталог", "", "", []string{"A1", "A2", "A3"}},
		{"фильтр по проекту", "П-100", "", []string{"A1", "A2"}},
		{"проект и шкаф", "П-100", "ШУ-1", []string{"A1"}},
		{"шкаф из другого проекта", "П-200", "ШУ-1", []string{"A3"}},
		{"неизвестный проект", "П-999", "", nil},
		{"неизвестный шкаф", "П-100", "ШУ-9", nil},
		// Код шкафа уникален только внутри проекта, без проекта он не применяется
		{"шкаф без проекта", "", "ШУ-1", []string{"A1", "A2", "A3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := SelectPool(snapshot, tt.project, tt.cabinet)
			if len(pool) != len(tt.want) {
				t.Fatalf("len(pool) = %d, want %d", len(pool), len(tt.want))
			}
			for i, item := range pool {
				if item.Article != tt.want[i] {
					t.Errorf("pool[%d] = %q, want %q", i, item.Article, tt.want[i])
				}
			}
		})
	}
}

// Пустой пул не является ошибкой: все запросы против него дадут "не найдено".
func TestSelectPool_UnknownFilterMatchesNothing(t *testing.T) {
	m := newTestMatcher(DefaultThreshold)
	pool := SelectPool(poolSnapshot(), "П-999", "")

	result := m.Match(MatchQuery{Text: "что угодно"}, pool)
	if result.Found {
		t.Error("поиск по пустому пулу должен давать 'не найдено'")
	}
}
