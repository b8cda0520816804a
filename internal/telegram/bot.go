// Package telegram is the inbound transport: it long-polls the Bot API,
// downloads attachments, and hands each message to the routing workflow.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kalambet/jarvis/internal/storage"
	"github.com/kalambet/jarvis/internal/workflow"
)

// UserStore resolves Telegram identities to internal users.
// *storage.Store satisfies it.
type UserStore interface {
	GetOrCreateUser(telegramID int64, username, firstName string) (storage.User, error)
}

// Runner executes one message through the routing workflow.
type Runner interface {
	Run(ctx context.Context, state *workflow.State) string
}

// Bot is the long-polling Telegram front end.
type Bot struct {
	api         *tgbotapi.BotAPI
	store       UserStore
	workflow    Runner
	downloadDir string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewBot connects to the Bot API with the given token. Attachments are
// downloaded under downloadDir before the workflow runs.
func NewBot(token string, store UserStore, wf Runner, downloadDir string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return &Bot{
		api:         api,
		store:       store,
		workflow:    wf,
		downloadDir: downloadDir,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      slog.Default(),
	}, nil
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	if from == nil {
		return
	}

	user, err := b.store.GetOrCreateUser(from.ID, from.UserName, from.FirstName)
	if err != nil {
		b.logger.Error("resolving user failed", "telegram_id", from.ID, "error", err)
		b.send(msg.Chat.ID, "Sorry, something went wrong. Please try again.")
		return
	}

	wfCtx := map[string]string{
		workflow.CtxChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		workflow.CtxUsername:  from.UserName,
		workflow.CtxFirstName: from.FirstName,
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	if path, name, mime, err := b.downloadAttachment(msg); err != nil {
		b.logger.Warn("attachment download failed", "error", err)
		b.send(msg.Chat.ID, "Sorry, I couldn't download that file. Please try sending it again.")
		return
	} else if path != "" {
		wfCtx[workflow.CtxAttachmentPath] = path
		wfCtx[workflow.CtxAttachmentName] = name
		wfCtx[workflow.CtxAttachmentMime] = mime
		if text == "" {
			text = name
		}
	}

	if text == "" {
		return
	}

	state := workflow.NewState(user.ID, text, wfCtx)
	response := b.workflow.Run(ctx, state)
	b.send(msg.Chat.ID, response)
}

// downloadAttachment fetches the message's document or largest photo into
// the download directory. Returns empty path when the message has no file.
func (b *Bot) downloadAttachment(msg *tgbotapi.Message) (path, name, mime string, err error) {
	var fileID string
	switch {
	case msg.Document != nil:
		fileID = msg.Document.FileID
		name = msg.Document.FileName
		mime = msg.Document.MimeType
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		fileID = photo.FileID
		name = fmt.Sprintf("photo_%s.jpg", photo.FileUniqueID)
		mime = "image/jpeg"
	default:
		return "", "", "", nil
	}
	if name == "" {
		name = fileID
	}

	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", "", "", fmt.Errorf("resolving file url: %w", err)
	}

	dir := filepath.Join(b.downloadDir, "telegram", strconv.FormatInt(msg.From.ID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("creating download dir: %w", err)
	}
	local := filepath.Join(dir, filepath.Base(name))

	resp, err := b.httpClient.Get(url)
	if err != nil {
		return "", "", "", fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", "", fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}

	out, err := os.Create(local)
	if err != nil {
		return "", "", "", fmt.Errorf("creating local file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(local)
		return "", "", "", fmt.Errorf("writing local file: %w", err)
	}

	return local, name, mime, nil
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("sending message failed", "chat_id", chatID, "error", err)
	}
}

// Notify sends reminder text directly to the user's private chat.
func (b *Bot) Notify(telegramID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}
