package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"MultimodalChat/internal/app"
	"MultimodalChat/internal/app/session"
	"MultimodalChat/internal/config"
	"MultimodalChat/internal/conversation"
	"MultimodalChat/internal/input"
)

func main() {
	cfg, err := config.NewConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// создаём предустановленный регистратор zap
	logger, err := app.NewLogger(cfg.DebugMode)
	if err != nil {
		panic(err)
	}
	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Debugw("Failed to sync logger", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			sugar.Errorw("Application error", "severity", "critical", "panic", r)
			fmt.Println("Application error: something went wrong")
		}
	}()

	sugar.Infow("Starting app", "DebugMode", cfg.DebugMode, "model", cfg.Model, "historyBudget", cfg.HistoryTokenBudget())

	counter, err := app.NewCounter(cfg)
	if err != nil {
		sugar.Errorw("Не удалось инициализировать токенизатор", "error", err)
		return
	}
	sess := app.NewFactory(cfg, counter, app.NewInvoker(cfg, sugar), sugar).NewSession()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// после первого сигнала возвращаем стандартную обработку: повторный Ctrl+C завершит процесс,
	// даже если чтение stdin ещё заблокировано
	context.AfterFunc(ctx, stop)

	repl{cfg: cfg, sess: sess, logger: sugar, out: os.Stdout}.run(ctx, os.Stdin)
}

// repl — терминальная оболочка: строка текста отправляется как реплика,
// /attach <путь> добавляет файл к следующей реплике.
type repl struct {
	cfg    *config.Config
	sess   *session.Session
	logger *zap.SugaredLogger
	out    io.Writer
}

func (r repl) run(ctx context.Context, in io.Reader) {
	fmt.Fprintln(r.out, "Multimodal Chat. Type a message, /attach <file>, /history or /quit.")

	var pending []input.Blob
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/attach":
			fmt.Fprintln(r.out, "usage: /attach <file>")
			continue
		case line == "/history":
			r.printHistory(r.sess.History())
			continue
		case strings.HasPrefix(line, "/attach "):
			blob, err := r.attach(strings.TrimSpace(strings.TrimPrefix(line, "/attach ")))
			if err != nil {
				fmt.Fprintf(r.out, "An error occurred: %v\n", err)
				continue
			}
			pending = append(pending, blob)
			r.logger.Debugw("Файл добавлен к следующей реплике", "name", blob.Name, "mime", blob.MIMEType)
			fmt.Fprintf(r.out, "attached %s\n", blob.Name)
			continue
		}

		var userInput input.UserInput = input.PlainText{Text: line}
		if len(pending) > 0 {
			userInput = input.WithAttachments{Text: line, Blobs: pending}
		}
		pending = nil

		fmt.Fprintln(r.out, "Generating response...")
		reply, err := r.sess.HandleTurn(ctx, userInput)
		if err != nil {
			fmt.Fprintln(r.out, session.UserMessage(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		for _, name := range reply.Dropped {
			fmt.Fprintf(r.out, "(skipped %s: could not be read)\n", name)
		}
		fmt.Fprintf(r.out, "assistant: %s\n", reply.Text)
	}
}

// attach проверяет расширение и готовит файл к отправке; читается он при кодировании.
func (r repl) attach(path string) (input.Blob, error) {
	name := filepath.Base(path)
	if !r.cfg.Allows(name) {
		return input.Blob{}, fmt.Errorf("file type not allowed: %s (allowed: %s)", name, strings.Join(r.cfg.AllowedFileTypes, ", "))
	}
	if _, err := os.Stat(path); err != nil {
		return input.Blob{}, err
	}
	return input.Blob{
		Name:     name,
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func (r repl) printHistory(turns []conversation.Turn) {
	for _, t := range turns {
		fmt.Fprintf(r.out, "[%s] %s: %s\n", t.Timestamp.Format("15:04:05"), t.Role, t.Content)
		if t.Role == conversation.RoleUser && len(t.AttachmentNames) > 0 {
			fmt.Fprintf(r.out, "    Attached Files: %s\n", strings.Join(t.AttachmentNames, ", "))
		}
	}
}
