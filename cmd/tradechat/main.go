// Команда tradechat - терминальный чат участника сделки.
// Строки из stdin отправляются собеседнику, входящие события печатаются
// по мере прихода, собственные сообщения подтверждаются эхом сервера.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ninerxsolution/trading-market/internal/chatsync"
	"github.com/ninerxsolution/trading-market/internal/logger"
	"github.com/ninerxsolution/trading-market/internal/realtime"
)

func main() {
	server := flag.String("server", envOr("TRADECHAT_SERVER", "http://localhost:8080"), "адрес API")
	token := flag.String("token", os.Getenv("TRADECHAT_TOKEN"), "access токен")
	with := flag.String("with", "", "id собеседника")
	order := flag.String("order", "", "id сделки (необязательно)")
	transport := flag.String("transport", "sse", "sse или ws")
	flag.Parse()

	logger.Init("info")
	logger.SetTextFormatter()

	if *token == "" || *with == "" {
		flag.Usage()
		os.Exit(2)
	}

	me, err := subjectOf(*token)
	if err != nil {
		logger.Log.Fatalf("tradechat: %v", err)
	}
	peer, err := uuid.Parse(*with)
	if err != nil {
		logger.Log.Fatalf("tradechat: некорректный -with: %v", err)
	}
	var orderID *uuid.UUID
	if *order != "" {
		id, err := uuid.Parse(*order)
		if err != nil {
			logger.Log.Fatalf("tradechat: некорректный -order: %v", err)
		}
		orderID = &id
	}

	api, err := newAPIClient(*server, *token)
	if err != nil {
		logger.Log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := &session{
		api:     api,
		rec:     chatsync.NewReconciler(me, chatsync.DefaultMatchWindow),
		me:      me,
		peer:    peer,
		orderID: orderID,
		follow:  api.followSSE,
	}
	if *transport == "ws" {
		s.follow = api.followWS
	}

	if err := s.reload(ctx); err != nil {
		logger.Log.Fatalf("tradechat: не удалось загрузить историю: %v", err)
	}
	s.printAll()

	go s.stream(ctx)
	s.readInput(ctx, os.Stdin)
}

type session struct {
	api     *apiClient
	rec     *chatsync.Reconciler
	me      uuid.UUID
	peer    uuid.UUID
	orderID *uuid.UUID
	follow  func(context.Context, func(realtime.Event)) error
}

func (s *session) reload(ctx context.Context) error {
	msgs, err := s.api.history(ctx, s.peer)
	if err != nil {
		return err
	}
	s.rec.LoadHistory(msgs)
	return nil
}

// stream держит подписку. После обрыва переподключается и перечитывает
// историю: события за время обрыва не доставляются повторно.
func (s *session) stream(ctx context.Context) {
	backoff := time.Second
	for {
		err := s.follow(ctx, s.handle)
		if ctx.Err() != nil {
			return
		}
		logger.Log.WithError(err).Warnf("tradechat: поток событий прерван, повтор через %s", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}

		if err := s.reload(ctx); err != nil {
			logger.Log.WithError(err).Warn("tradechat: не удалось перечитать историю")
			continue
		}
		backoff = time.Second
		s.printAll()
	}
}

func (s *session) handle(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventMessage:
		m := ev.Message
		if m == nil || !s.inConversation(m.SenderID, m.ReceiverID) {
			return
		}
		if !s.rec.ApplyConfirmed(*m) {
			return
		}
		if m.SenderID == s.me {
			fmt.Printf("  ✓ %s\n", m.Message)
			return
		}
		fmt.Printf("[%s] %s\n", m.Timestamp.Local().Format("15:04:05"), m.Message)
	case realtime.EventOrder:
		o := ev.Order
		if o == nil || !o.IsParticipant(s.peer) {
			return
		}
		fmt.Printf("-- заказ #%s: %s\n", o.ID.String()[:8], o.Status)
	}
}

func (s *session) inConversation(a, b uuid.UUID) bool {
	return (a == s.me && b == s.peer) || (a == s.peer && b == s.me)
}

func (s *session) readInput(ctx context.Context, in *os.File) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "/history":
			s.printAll()
			continue
		case "/quit":
			return
		}

		s.rec.AddOptimistic(s.peer, text, s.orderID, time.Now().UTC())
		fmt.Printf("> %s (отправляется)\n", text)

		msg, err := s.api.send(ctx, s.peer, text, s.orderID)
		if err != nil {
			logger.Log.WithError(err).Error("tradechat: сообщение не отправлено")
			continue
		}
		// Ответ POST тоже подтверждение: эхо из стрима потом отбросится по id.
		if s.rec.ApplyConfirmed(*msg) {
			fmt.Printf("  ✓ %s\n", msg.Message)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.WithError(err).Error("tradechat: ошибка чтения stdin")
	}
}

func (s *session) printAll() {
	fmt.Println("---")
	for _, e := range s.rec.Entries() {
		who := "они"
		if e.SenderID == s.me {
			who = "я"
		}
		mark := ""
		if e.Pending {
			mark = " (отправляется)"
		}
		fmt.Printf("[%s] %s: %s%s\n", e.Timestamp.Local().Format("15:04:05"), who, e.Message, mark)
	}
	fmt.Println("---")
}

// subjectOf читает sub из токена без проверки подписи: её проверяет сервер.
func subjectOf(token string) (uuid.UUID, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return uuid.Nil, fmt.Errorf("не удалось разобрать токен: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(sub)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
