package channels

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/config"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

const (
	oneBotReadDeadline  = 60 * time.Second
	oneBotPingInterval  = 30 * time.Second
	oneBotReconnectWait = 5 * time.Second
	oneBotDedupSize     = 1024
)

// OneBotChannel speaks the OneBot v11 protocol over a forward WebSocket.
type OneBotChannel struct {
	*BaseChannel
	cfg    config.OneBotConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	echoCounter int64
	pendingMu   sync.Mutex
	pending     map[string]chan json.RawMessage

	dedup     map[string]struct{}
	dedupRing []string
	dedupIdx  int
}

type oneBotEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	MessageID   json.RawMessage `json:"message_id"`
	UserID      json.RawMessage `json:"user_id"`
	GroupID     json.RawMessage `json:"group_id"`
	Message     json.RawMessage `json:"message"`
	Echo        string          `json:"echo"`
	Data        json.RawMessage `json:"data"`
}

type oneBotSegment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type oneBotAPIRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo,omitempty"`
}

func NewOneBotChannel(cfg config.OneBotConfig, b bus.Broker) *OneBotChannel {
	return &OneBotChannel{
		BaseChannel: NewBaseChannel("onebot", b),
		cfg:         cfg,
		pending:     make(map[string]chan json.RawMessage),
		dedup:       make(map[string]struct{}, oneBotDedupSize),
		dedupRing:   make([]string, oneBotDedupSize),
	}
}

func (c *OneBotChannel) Start(ctx context.Context) error {
	if c.cfg.WSUrl == "" {
		return fmt.Errorf("onebot ws_url not configured")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		logger.WarnC("onebot", "initial connect failed, retrying in background: "+err.Error())
	} else {
		go c.listen()
	}
	go c.reconnectLoop()

	c.setRunning(true)
	logger.InfoC("onebot", "channel started")
	return nil
}

func (c *OneBotChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.cancel != nil {
		c.cancel()
	}

	c.pendingMu.Lock()
	for echo, ch := range c.pending {
		close(ch)
		delete(c.pending, echo)
	}
	c.pendingMu.Unlock()

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	return nil
}

func (c *OneBotChannel) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := make(map[string][]string)
	if c.cfg.Token != "" {
		header["Authorization"] = []string{"Bearer " + c.cfg.Token}
	}

	conn, _, err := dialer.Dial(c.cfg.WSUrl, header)
	if err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(oneBotReadDeadline))
		return nil
	})
	_ = conn.SetReadDeadline(time.Now().Add(oneBotReadDeadline))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.pinger(conn)
	logger.InfoC("onebot", "websocket connected")
	return nil
}

func (c *OneBotChannel) pinger(conn *websocket.Conn) {
	ticker := time.NewTicker(oneBotPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *OneBotChannel) reconnectLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(oneBotReconnectWait):
			c.mu.Lock()
			connected := c.conn != nil
			c.mu.Unlock()
			if connected {
				continue
			}

			logger.InfoC("onebot", "reconnecting")
			if err := c.connect(); err != nil {
				logger.ErrorC("onebot", "reconnect failed: "+err.Error())
				continue
			}
			go c.listen()
		}
	}
}

func (c *OneBotChannel) listen() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			logger.ErrorC("onebot", "websocket read error: "+err.Error())
			c.mu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(oneBotReadDeadline))

		var event oneBotEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}

		if event.Echo != "" {
			c.pendingMu.Lock()
			ch, ok := c.pending[event.Echo]
			c.pendingMu.Unlock()
			if ok {
				select {
				case ch <- message:
				default:
				}
			}
			continue
		}

		if event.PostType == "message" {
			c.handleMessage(&event)
		}
	}
}

// call sends one API request and waits for its echoed response.
func (c *OneBotChannel) call(action string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("websocket not connected")
	}

	echo := fmt.Sprintf("api_%d", atomic.AddInt64(&c.echoCounter, 1))
	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, echo)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(oneBotAPIRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%s timed out", action)
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// fire sends one API request without waiting for the response.
func (c *OneBotChannel) fire(action string, params interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("websocket not connected")
	}

	data, err := json.Marshal(oneBotAPIRequest{Action: action, Params: params})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *OneBotChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("onebot channel not running")
	}

	action, idKey, id, err := splitOneBotChatID(msg.ChatID)
	if err != nil {
		return err
	}

	switch msg.Kind {
	case bus.OutNodes:
		return c.sendForward(msg, idKey, id)
	case bus.OutImage:
		segment := oneBotSegment{Type: "image", Data: map[string]interface{}{
			"file": imageFileValue(msg),
		}}
		return c.fire(action, map[string]interface{}{
			idKey: id, "message": []oneBotSegment{segment},
		})
	default:
		segment := oneBotSegment{Type: "text", Data: map[string]interface{}{"text": msg.Content}}
		return c.fire(action, map[string]interface{}{
			idKey: id, "message": []oneBotSegment{segment},
		})
	}
}

// sendForward delivers grouped nodes as one forwarded bundle, the format the
// disambiguation previews and download listings use.
func (c *OneBotChannel) sendForward(msg bus.OutboundMessage, idKey string, id int64) error {
	nodes := make([]oneBotSegment, 0, len(msg.Nodes))
	for _, n := range msg.Nodes {
		var content []oneBotSegment
		if n.ImageB64 != "" {
			content = append(content, oneBotSegment{Type: "image", Data: map[string]interface{}{
				"file": dataURIToOneBot(n.ImageB64),
			}})
		}
		if n.Text != "" {
			content = append(content, oneBotSegment{Type: "text", Data: map[string]interface{}{"text": n.Text}})
		}
		nodes = append(nodes, oneBotSegment{Type: "node", Data: map[string]interface{}{
			"content": content,
		}})
	}

	action := "send_private_forward_msg"
	if idKey == "group_id" {
		action = "send_group_forward_msg"
	}
	return c.fire(action, map[string]interface{}{idKey: id, "messages": nodes})
}

func splitOneBotChatID(chatID string) (action, idKey string, id int64, err error) {
	raw := chatID
	action, idKey = "send_private_msg", "user_id"
	if rest, ok := strings.CutPrefix(chatID, "group:"); ok {
		action, idKey, raw = "send_group_msg", "group_id", rest
	} else if rest, ok := strings.CutPrefix(chatID, "private:"); ok {
		raw = rest
	}

	id, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid onebot chat id %q", chatID)
	}
	return action, idKey, id, nil
}

// imageFileValue prefers inline bytes over the reference: cached artifacts
// arrive as bytes and must not require the protocol side to fetch anything.
func imageFileValue(msg bus.OutboundMessage) string {
	if len(msg.ImageBytes) > 0 {
		return "base64://" + base64.StdEncoding.EncodeToString(msg.ImageBytes)
	}
	return msg.ImageRef
}

func dataURIToOneBot(dataURI string) string {
	if idx := strings.Index(dataURI, "base64,"); idx >= 0 {
		return "base64://" + dataURI[idx+len("base64,"):]
	}
	return dataURI
}

func (c *OneBotChannel) handleMessage(event *oneBotEvent) {
	messageID := rawToString(event.MessageID)
	if c.isDuplicate(messageID) {
		return
	}

	userID, err := rawToInt64(event.UserID)
	if err != nil || userID == 0 {
		return
	}
	senderID := strconv.FormatInt(userID, 10)

	var chatID string
	switch event.MessageType {
	case "group":
		groupID, _ := rawToInt64(event.GroupID)
		chatID = "group:" + strconv.FormatInt(groupID, 10)
	case "private":
		chatID = "private:" + senderID
	default:
		return
	}

	text, images, replyTo := c.parseSegments(event.Message)
	if replyTo != "" {
		// images of the quoted message rank after the message's own
		images = append(images, c.repliedImages(replyTo)...)
	}
	if text == "" && len(images) == 0 {
		return
	}

	metadata := map[string]string{"message_id": messageID}
	c.HandleMessage(senderID, chatID, text, images, metadata)
}

func (c *OneBotChannel) parseSegments(raw json.RawMessage) (text string, images []string, replyTo string) {
	if len(raw) == 0 {
		return "", nil, ""
	}

	// CQ-code string arrays are normalized to segment arrays by every modern
	// implementation; plain strings carry no attachments
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s), nil, ""
	}

	var segments []oneBotSegment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return "", nil, ""
	}

	var parts []string
	for _, seg := range segments {
		switch seg.Type {
		case "text":
			if t, ok := seg.Data["text"].(string); ok {
				parts = append(parts, t)
			}
		case "image":
			if url, ok := seg.Data["url"].(string); ok && url != "" {
				images = append(images, url)
			}
		case "reply":
			replyTo = fmt.Sprintf("%v", seg.Data["id"])
		}
	}
	return strings.TrimSpace(strings.Join(parts, "")), images, replyTo
}

// repliedImages pulls the attachments of a quoted message via get_msg.
func (c *OneBotChannel) repliedImages(messageID string) []string {
	resp, err := c.call("get_msg", map[string]interface{}{"message_id": messageID}, 5*time.Second)
	if err != nil {
		logger.DebugC("onebot", "get_msg failed: "+err.Error())
		return nil
	}

	var wrapper struct {
		Data struct {
			Message json.RawMessage `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &wrapper); err != nil {
		return nil
	}
	_, images, _ := c.parseSegments(wrapper.Data.Message)
	return images
}

func (c *OneBotChannel) isDuplicate(messageID string) bool {
	if messageID == "" || messageID == "0" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.dedup[messageID]; exists {
		return true
	}
	if old := c.dedupRing[c.dedupIdx]; old != "" {
		delete(c.dedup, old)
	}
	c.dedupRing[c.dedupIdx] = messageID
	c.dedup[messageID] = struct{}{}
	c.dedupIdx = (c.dedupIdx + 1) % len(c.dedupRing)
	return false
}

func rawToInt64(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	return 0, fmt.Errorf("cannot parse %s as int64", string(raw))
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
