package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"collegebot/internal/models"
	"collegebot/internal/parser"
	"collegebot/internal/service"
)

const startText = `Привет! Я бот расписания колледжа.

Команды:
/group — расписание группы
/teacher — расписание преподавателя
/room — расписание кабинета
/groups — список групп
/teachers — список преподавателей
/rooms — список кабинетов
/subscribe — подписка на обновления
/my — расписание по вашей подписке
/food — меню столовой

Группу или преподавателя можно указать сразу: /group 1-ИП-2`

var reDottedDateArg = regexp.MustCompile(`^\d{1,2}[./-]\d{1,2}[./-]\d{2,4}$`)

type scheduleQueries interface {
	ByGroup(ctx context.Context, group, date string) (string, error)
	ByTeacher(ctx context.Context, teacher, date string) (string, error)
	ByRoom(ctx context.Context, room int, date string) (string, error)
	Groups(ctx context.Context) ([]string, error)
	Teachers(ctx context.Context) ([]string, error)
	Rooms(ctx context.Context) ([]int, error)
}

type subscriptionStore interface {
	Subscribe(ctx context.Context, in service.SubscribeInput) error
	Current(ctx context.Context, key models.SubscriberKey) (*models.Subscription, error)
}

type menuSource interface {
	Menu(ctx context.Context) ([]byte, error)
}

// threadMessage carries the forum thread id alongside the library message.
// The pinned library version neither decodes inbound message_thread_id nor
// accepts it on outbound configs, so both directions go through raw Bot API
// params.
type threadMessage struct {
	tgbotapi.Message
	ThreadID int `json:"message_thread_id"`
}

type threadUpdate struct {
	UpdateID int            `json:"update_id"`
	Message  *threadMessage `json:"message"`
}

func (m *threadMessage) key() models.SubscriberKey {
	return models.SubscriberKey{ChatID: m.Chat.ID, ThreadID: m.ThreadID, Platform: models.PlatformTelegram}
}

// Telegram is the Telegram front end. It answers commands over long polling
// and doubles as the notification sink for the TG platform.
type Telegram struct {
	api      *tgbotapi.BotAPI
	sched    scheduleQueries
	subs     subscriptionStore
	canteen  menuSource
	sessions *Sessions
	logger   *zap.Logger
}

// NewTelegram authenticates against the Bot API.
func NewTelegram(token string, sched scheduleQueries, subs subscriptionStore, canteen menuSource, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Sugar().Infow("telegram bot authorised", "username", api.Self.UserName)
	return &Telegram{
		api:      api,
		sched:    sched,
		subs:     subs,
		canteen:  canteen,
		sessions: NewSessions(),
		logger:   logger,
	}, nil
}

// Run consumes updates over long polling until ctx is cancelled. A raw
// getUpdates loop is used instead of the library channel so that forum
// threads get their own session and subscription per (chat, thread).
func (t *Telegram) Run(ctx context.Context) {
	offset := 0
	for ctx.Err() == nil {
		updates, err := t.poll(offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Sugar().Warnw("update poll failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, upd := range updates {
			offset = upd.UpdateID + 1
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}
			t.handleMessage(ctx, upd.Message)
		}
	}
}

func (t *Telegram) poll(offset int) ([]threadUpdate, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", 30)
	resp, err := t.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	var updates []threadUpdate
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// Send implements the notification sink for the TG platform.
func (t *Telegram) Send(ctx context.Context, sub models.Subscriber, text string, rich bool) error {
	return t.send(ctx, sub.ChatID, sub.ThreadID, text, rich)
}

func (t *Telegram) send(ctx context.Context, chatID int64, threadID int, text string, rich bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonEmpty("text", text)
	params.AddNonZero("message_thread_id", threadID)
	if rich {
		params.AddNonEmpty("parse_mode", tgbotapi.ModeHTML)
	}
	if _, err := t.api.MakeRequest("sendMessage", params); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) handleMessage(ctx context.Context, msg *threadMessage) {
	key := msg.key()

	if msg.IsCommand() {
		t.sessions.Clear(key)
		t.handleCommand(ctx, key, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	state := t.sessions.Get(key)
	if state == StateNone {
		return
	}
	t.sessions.Clear(key)
	t.handleInput(ctx, key, state, strings.TrimSpace(msg.Text))
}

func (t *Telegram) handleCommand(ctx context.Context, key models.SubscriberKey, command, args string) {
	switch command {
	case "start", "help":
		t.replyPlain(ctx, key, startText)
	case "group":
		if args == "" {
			t.sessions.Set(key, StateAwaitGroup)
			t.replyPlain(ctx, key, "Введите название группы:")
			return
		}
		t.handleInput(ctx, key, StateAwaitGroup, args)
	case "teacher":
		if args == "" {
			t.sessions.Set(key, StateAwaitTeacher)
			t.replyPlain(ctx, key, "Введите фамилию и инициалы преподавателя:")
			return
		}
		t.handleInput(ctx, key, StateAwaitTeacher, args)
	case "room":
		if args == "" {
			t.sessions.Set(key, StateAwaitRoom)
			t.replyPlain(ctx, key, "Введите номер кабинета:")
			return
		}
		t.handleInput(ctx, key, StateAwaitRoom, args)
	case "subscribe":
		if args == "" {
			t.sessions.Set(key, StateAwaitSubscribe)
			t.replyPlain(ctx, key, "Введите группу или фамилию преподавателя для подписки:")
			return
		}
		t.handleInput(ctx, key, StateAwaitSubscribe, args)
	case "groups":
		t.sendList(ctx, key, "Группы:", t.sched.Groups)
	case "teachers":
		t.sendList(ctx, key, "Преподаватели:", t.sched.Teachers)
	case "rooms":
		t.sendList(ctx, key, "Кабинеты:", func(ctx context.Context) ([]string, error) {
			rooms, err := t.sched.Rooms(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]string, len(rooms))
			for i, room := range rooms {
				out[i] = strconv.Itoa(room)
			}
			return out, nil
		})
	case "my":
		t.sendMySchedule(ctx, key)
	case "food":
		t.sendMenu(ctx, key)
	default:
		t.replyPlain(ctx, key, "Неизвестная команда. /help покажет список команд.")
	}
}

func (t *Telegram) handleInput(ctx context.Context, key models.SubscriberKey, state State, input string) {
	if input == "" {
		t.replyPlain(ctx, key, "Пустой запрос, попробуйте ещё раз.")
		return
	}
	value, date := splitDateArg(input)

	switch state {
	case StateAwaitGroup:
		text, err := t.sched.ByGroup(ctx, value, date)
		t.replyResult(ctx, key, text, err)
	case StateAwaitTeacher:
		text, err := t.sched.ByTeacher(ctx, value, date)
		t.replyResult(ctx, key, text, err)
	case StateAwaitRoom:
		room, err := strconv.Atoi(value)
		if err != nil {
			t.replyPlain(ctx, key, "Номер кабинета должен быть числом.")
			return
		}
		text, err := t.sched.ByRoom(ctx, room, date)
		t.replyResult(ctx, key, text, err)
	case StateAwaitSubscribe:
		t.subscribe(ctx, key, value)
	}
}

func (t *Telegram) subscribe(ctx context.Context, key models.SubscriberKey, value string) {
	subType := models.SubGroup
	kind := "группу"
	if parser.IsTeacherName(value) {
		subType = models.SubTeacher
		kind = "преподавателя"
	}
	err := t.subs.Subscribe(ctx, service.SubscribeInput{
		ChatID:   key.ChatID,
		ThreadID: key.ThreadID,
		Platform: key.Platform,
		Type:     subType,
		Value:    value,
	})
	if err != nil {
		t.logger.Sugar().Warnw("subscribe failed", "chat_id", key.ChatID, "value", value, "error", err)
		t.replyPlain(ctx, key, "Не удалось оформить подписку, попробуйте позже.")
		return
	}
	t.replyPlain(ctx, key, fmt.Sprintf("Подписка на %s «%s» оформлена. Я напишу, когда расписание изменится.", kind, value))
}

func (t *Telegram) sendMySchedule(ctx context.Context, key models.SubscriberKey) {
	sub, err := t.subs.Current(ctx, key)
	if err != nil {
		t.logger.Sugar().Warnw("subscription lookup failed", "chat_id", key.ChatID, "error", err)
		t.replyPlain(ctx, key, "Не удалось получить подписку, попробуйте позже.")
		return
	}
	if sub == nil {
		t.replyPlain(ctx, key, "Вы ещё не подписаны. Оформите подписку командой /subscribe.")
		return
	}
	var text string
	if sub.Type == models.SubTeacher {
		text, err = t.sched.ByTeacher(ctx, sub.Value, "")
	} else {
		text, err = t.sched.ByGroup(ctx, sub.Value, "")
	}
	t.replyResult(ctx, key, text, err)
}

func (t *Telegram) sendList(ctx context.Context, key models.SubscriberKey, title string, load func(context.Context) ([]string, error)) {
	items, err := load(ctx)
	if err != nil {
		t.logger.Sugar().Warnw("list query failed", "chat_id", key.ChatID, "error", err)
		t.replyPlain(ctx, key, "Не получилось достать список, попробуйте позже.")
		return
	}
	if len(items) == 0 {
		t.replyPlain(ctx, key, "Пока ничего не загружено.")
		return
	}
	t.replyPlain(ctx, key, title+"\n"+strings.Join(items, "\n"))
}

func (t *Telegram) sendMenu(ctx context.Context, key models.SubscriberKey) {
	data, err := t.canteen.Menu(ctx)
	if err != nil {
		t.logger.Sugar().Warnw("menu fetch failed", "error", err)
		t.replyPlain(ctx, key, "Меню столовой сейчас недоступно.")
		return
	}
	doc := tgbotapi.NewDocument(key.ChatID, tgbotapi.FileBytes{Name: "menu.pdf", Bytes: data})
	doc.Caption = "Меню столовой"
	if _, err := t.api.Send(doc); err != nil {
		t.logger.Sugar().Warnw("menu send failed", "chat_id", key.ChatID, "error", err)
	}
}

func (t *Telegram) replyResult(ctx context.Context, key models.SubscriberKey, text string, err error) {
	if err != nil {
		t.logger.Sugar().Warnw("schedule query failed", "chat_id", key.ChatID, "error", err)
		t.replyPlain(ctx, key, "Не получилось достать расписание, попробуйте позже.")
		return
	}
	if err := t.send(ctx, key.ChatID, key.ThreadID, text, true); err != nil {
		t.logger.Sugar().Warnw("reply failed", "chat_id", key.ChatID, "error", err)
	}
}

func (t *Telegram) replyPlain(ctx context.Context, key models.SubscriberKey, text string) {
	if err := t.send(ctx, key.ChatID, key.ThreadID, text, false); err != nil {
		t.logger.Sugar().Warnw("reply failed", "chat_id", key.ChatID, "error", err)
	}
}

// splitDateArg peels a trailing dotted date off a query, so "1-ИП-2
// 12.12.2025" queries that group on that date.
func splitDateArg(input string) (value, date string) {
	fields := strings.Fields(input)
	if len(fields) > 1 && reDottedDateArg.MatchString(fields[len(fields)-1]) {
		return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
	}
	return strings.TrimSpace(input), ""
}
