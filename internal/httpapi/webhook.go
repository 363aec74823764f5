package httpapi

import (
	"net/http"

	"bonus-drops/internal/models"
	"bonus-drops/pkg/logger"

	"github.com/gin-gonic/gin"
	"gopkg.in/telebot.v4"
)

// webhook acknowledges every well-formed update once the secret passed.
// Processing failures are logged only; a non-2xx answer makes Telegram
// redeliver the same update.
func (s *Server) webhook(c *gin.Context) {
	var update telebot.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid update"})
		return
	}

	if msg, found := rawMessage(update); found {
		outcome, err := s.ingester.HandleMessage(c.Request.Context(), msg)
		if err != nil {
			logger.Error("Failed to process telegram update",
				logger.Err(err),
				logger.Int("update_id", update.ID),
				logger.Int64("chat_id", msg.ChatID),
			)
		} else {
			logger.Debug("Telegram update processed",
				logger.Int("update_id", update.ID),
				logger.String("outcome", string(outcome)),
			)
		}
	}

	if s.updates != nil {
		s.updates.ProcessUpdate(update)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// rawMessage extracts the message or channel post an update carries.
func rawMessage(u telebot.Update) (models.RawMessage, bool) {
	m := u.Message
	if m == nil {
		m = u.ChannelPost
	}
	if m == nil || m.Chat == nil {
		return models.RawMessage{}, false
	}

	raw := models.RawMessage{
		Text:      m.Text,
		ChatID:    m.Chat.ID,
		MessageID: m.ID,
		Date:      m.Unixtime,
	}
	if m.Sender != nil {
		raw.SenderID = m.Sender.ID
	}
	return raw, true
}
