package server

import "estimator/matching"

// EstimateRequest запрос на расчет времени сборки.
type EstimateRequest struct {
	Names        []string `json:"names" binding:"required,min=1"`
	FormatReport bool     `json:"format_report"`
	ProjectCode  string   `json:"project_code"`
	CabinetCode  string   `json:"cabinet_code"`
}

// ChatMessage одно сообщение истории диалога.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest запрос интерактивного чата.
type ChatRequest struct {
	Message     string        `json:"message" binding:"required"`
	Names       []string      `json:"names"`
	History     []ChatMessage `json:"history"`
	ProjectCode string        `json:"project_code"`
	CabinetCode string        `json:"cabinet_code"`
	Mode        string        `json:"mode"`
}

// EstimateResponse результат расчета: отчет движка плюс необязательный
// текстовый отчет и предупреждения. Числа отчета самодостаточны и не
// зависят от генерации текста.
type EstimateResponse struct {
	matching.Report
	ReportText string   `json:"report,omitempty"`
	Warnings   []string `json:"warnings"`
}

// ChatResponse ответ чата: текст плюс данные расчета (если поиск выполнялся).
type ChatResponse struct {
	Reply string           `json:"reply"`
	Data  EstimateResponse `json:"data"`
}

// emptyEstimateResponse пустой расчет с предупреждениями.
func emptyEstimateResponse(warnings ...string) EstimateResponse {
	if warnings == nil {
		warnings = []string{}
	}
	return EstimateResponse{
		Report:   *matching.Aggregate(nil),
		Warnings: warnings,
	}
}
