package matching

// Report итог расчета по пакету запросов. Структура самодостаточна:
// числа и разбивки пригодны для показа пользователю без какой-либо
// генерации текста.
type Report struct {
	FoundItems         []MatchResult  `json:"found_items"`
	NotFoundItems      []string       `json:"not_found_items"`
	TotalTimeByCabinet map[string]int `json:"total_time_by_cabinet"`
	TotalTimeByProject map[string]int `json:"total_time_by_project"`
}

// TotalMinutes суммарное время сборки по всем найденным позициям.
func (r *Report) TotalMinutes() int {
	total := 0
	for _, minutes := range r.TotalTimeByCabinet {
		total += minutes
	}
	return total
}

// Aggregate сводит результаты сопоставления в отчет: найденные и
// ненайденные позиции в исходном порядке плюс суммы минут по шкафам
// и проектам. Чистая свертка, не может завершиться ошибкой; на пустом
// входе возвращает отчет с пустыми списками и нулевыми суммами.
func Aggregate(results []MatchResult) *Report {
	report := &Report{
		FoundItems:         make([]MatchResult, 0, len(results)),
		NotFoundItems:      make([]string, 0),
		TotalTimeByCabinet: make(map[string]int),
		TotalTimeByProject: make(map[string]int),
	}

	for _, result := range results {
		if !result.Found {
			report.NotFoundItems = append(report.NotFoundItems, result.Input)
			continue
		}
		report.FoundItems = append(report.FoundItems, result)
		report.TotalTimeByCabinet[result.CabinetCode] += result.AssemblyTimeMinutes
		report.TotalTimeByProject[result.ProjectCode] += result.AssemblyTimeMinutes
	}

	return report
}
