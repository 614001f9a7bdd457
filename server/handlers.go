package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"estimator/matching"
	apperrors "estimator/server/errors"
	"estimator/server/middleware"
)

// handleAppError отправляет ошибку приложения в формате JSON и логирует ее.
func handleAppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Внутренняя ошибка сервера"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode()
		message = appErr.Message
	}

	slog.Error("ошибка обработки запроса",
		"error", err.Error(),
		"status_code", status,
		"request_id", middleware.GetRequestIDFromGin(c),
		"path", c.Request.URL.Path,
	)

	c.JSON(status, gin.H{
		"error":   true,
		"message": message,
	})
}

// handleEstimate выполняет поиск и расчет времени без чата.
func (s *Server) handleEstimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleAppError(c, apperrors.NewValidationError("Список наименований пуст или запрос некорректен", err))
		return
	}

	report, err := s.estimation.Estimate(c.Request.Context(), req.Names, req.ProjectCode, req.CabinetCode)
	if err != nil {
		handleAppError(c, err)
		return
	}

	resp := EstimateResponse{
		Report:   *report,
		Warnings: []string{},
	}

	if req.FormatReport {
		switch {
		case s.textGen == nil:
			resp.Warnings = append(resp.Warnings, "Генерация текста отключена настройками")
		default:
			text, err := s.textGen.FormatReport(c.Request.Context(), report)
			if err != nil {
				slog.Warn("не удалось сформировать текстовый отчет",
					"error", err.Error(),
					"request_id", middleware.GetRequestIDFromGin(c),
				)
				resp.Warnings = append(resp.Warnings, "Не удалось получить ответ от сервиса генерации текста")
			} else {
				resp.ReportText = text
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleChat интерактивный чат: с поиском или без, в зависимости от режима.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleAppError(c, apperrors.NewValidationError("Сообщение не может быть пустым", err))
		return
	}

	mode, err := matching.ParseMode(req.Mode)
	if err != nil {
		handleAppError(c, apperrors.NewValidationError(err.Error(), nil))
		return
	}

	namesProvided := len(req.Names) > 0
	if matching.Decide(mode, namesProvided) == matching.RunPipeline {
		s.chatWithPipeline(c, req, namesProvided)
		return
	}
	s.chatOnly(c, req)
}

// chatWithPipeline ветка чата с запуском поиска и расчета.
func (s *Server) chatWithPipeline(c *gin.Context, req ChatRequest, namesProvided bool) {
	report, err := s.estimation.Estimate(c.Request.Context(), req.Names, req.ProjectCode, req.CabinetCode)
	if err != nil {
		// Недоступность каталога — повторяемая ошибка, не "не найдено"
		var appErr *apperrors.AppError
		status := http.StatusServiceUnavailable
		if errors.As(err, &appErr) {
			status = appErr.StatusCode()
		}
		slog.Error("ошибка расчета в чате",
			"error", err.Error(),
			"request_id", middleware.GetRequestIDFromGin(c),
		)
		c.JSON(status, ChatResponse{
			Reply: "Произошла ошибка при расчете. Попробуйте отправить данные еще раз.",
			Data:  emptyEstimateResponse("Каталог временно недоступен, попробуйте еще раз"),
		})
		return
	}

	data := EstimateResponse{
		Report:   *report,
		Warnings: []string{},
	}

	if !namesProvided {
		// Режим estimate без наименований: пустой расчет, не ошибка
		data.Warnings = append(data.Warnings, "Список наименований пуст, расчет не выполнялся")
		c.JSON(http.StatusOK, ChatResponse{
			Reply: "Не получил список позиций. Отправьте список и повторите запрос.",
			Data:  data,
		})
		return
	}

	reply := "Генерация текста отключена настройками."
	if s.textGen != nil {
		text, err := s.textGen.FormatChatReply(c.Request.Context(), req.Message, req.History, report)
		if err != nil {
			slog.Warn("не удалось сформировать ответ чата",
				"error", err.Error(),
				"request_id", middleware.GetRequestIDFromGin(c),
			)
			reply = "Не удалось сформировать текстовый ответ, данные расчета во вложении."
		} else {
			reply = text
		}
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply, Data: data})
}

// chatOnly разговорная ветка без поиска.
func (s *Server) chatOnly(c *gin.Context, req ChatRequest) {
	data := emptyEstimateResponse("Поиск по каталогу не выполнялся")

	reply := "Генерация текста отключена настройками."
	if s.textGen != nil {
		text, err := s.textGen.FormatChatOnly(c.Request.Context(), req.Message, req.History)
		if err != nil {
			slog.Warn("не удалось сформировать ответ чата",
				"error", err.Error(),
				"request_id", middleware.GetRequestIDFromGin(c),
			)
			reply = "Не удалось сформировать текстовый ответ."
		} else {
			reply = text
		}
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply, Data: data})
}

// handleHealth проверка живости и счетчики каталога.
func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.db.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  "каталог недоступен",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"catalog": stats,
	})
}
