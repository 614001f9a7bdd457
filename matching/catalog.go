package matching

// CatalogItem одна позиция каталога, снимок строки из БД.
// Поля CabinetCode/ProjectCode денормализованы при выборке,
// чтобы движок не ходил в БД за связями.
type CatalogItem struct {
	ID                  int64  `json:"id"`
	Article             string `json:"article"`
	Name                string `json:"name"`
	NameNorm            string `json:"name_norm"`
	CabinetID           int64  `json:"cabinet_id"`
	CabinetCode         string `json:"cabinet_code"`
	ProjectCode         string `json:"project_code"`
	NomenclatureType    string `json:"nomenclature_type"`
	StageName           string `json:"stage_name"`
	AssemblyTimeMinutes int    `json:"assembly_time_minutes"`
}

// MatchQuery один поисковый запрос: строка пользователя плюс
// необязательные фильтры по проекту и шкафу.
type MatchQuery struct {
	Text        string
	ProjectCode string
	CabinetCode string
}

// MatchResult результат сопоставления одной строки.
// Found=true означает, что заполнены поля найденной позиции,
// иначе значимо только поле Input.
type MatchResult struct {
	Found bool `json:"found"`

	Input string `json:"user_input"`

	Article             string  `json:"article,omitempty"`
	MatchedName         string  `json:"matched_name,omitempty"`
	CabinetID           int64   `json:"cabinet_id,omitempty"`
	CabinetCode         string  `json:"cabinet,omitempty"`
	ProjectCode         string  `json:"project,omitempty"`
	NomenclatureType    string  `json:"nomenclature_type,omitempty"`
	StageName           string  `json:"stage,omitempty"`
	AssemblyTimeMinutes int     `json:"time_per_unit,omitempty"`
	Score               float64 `json:"match_score,omitempty"`
}

// SelectPool отбирает из снимка каталога позиции, доступные для поиска.
// Пустые фильтры означают весь каталог. Фильтр по шкафу работает только
// вместе с фильтром по проекту: коды шкафов уникальны лишь внутри проекта.
// Неизвестный код проекта или шкафа дает пустой пул, это не ошибка.
func SelectPool(snapshot []CatalogItem, projectCode, cabinetCode string) []CatalogItem {
	if projectCode == "" {
		return snapshot
	}

	pool := make([]CatalogItem, 0, len(snapshot))
	for _, item := range snapshot {
		if item.ProjectCode != projectCode {
			continue
		}
		if cabinetCode != "" && item.CabinetCode != cabinetCode {
			continue
		}
		pool = append(pool, item)
	}
	return pool
}
