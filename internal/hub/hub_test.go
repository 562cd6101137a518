package hub

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/gateway-sim/internal/model"
)

type received struct {
	Type       string          `json:"type"`
	Result     bool            `json:"result"`
	Event      string          `json:"event"`
	ContractID string          `json:"contractId"`
	Data       json.RawMessage `json:"data"`
}

func startServer(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *websocket.Conn, method string, args ...any) {
	t.Helper()
	if args == nil {
		args = []any{}
	}
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":      "invoke",
		"method":    method,
		"arguments": args,
	}))
}

func next(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func expectAck(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	msg := next(t, conn)
	assert.Equal(t, "result", msg.Type)
	assert.True(t, msg.Result)
}

// expectSilence asserts nothing arrives within d. The connection is
// unusable afterwards.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", raw)
	var netErr net.Error
	if assert.ErrorAs(t, err, &netErr) {
		assert.True(t, netErr.Timeout())
	}
}

// --- User hub ---

func TestUserHub_OrderEventOnlyReachesSubscribedAccount(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	a := dial(t, url)
	b := dial(t, url)
	invoke(t, a, "SubscribeOrders", 1)
	expectAck(t, a)
	invoke(t, b, "SubscribeOrders", 2)
	expectAck(t, b)

	n := h.Publish(OrderEvent(model.Order{ID: 10, AccountID: 1, ContractID: "CON.F.US.EP.H25", Size: 3}))
	assert.Equal(t, 1, n)

	msg := next(t, a)
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "GatewayUserOrder", msg.Event)
	assert.Empty(t, msg.ContractID)

	var o model.Order
	require.NoError(t, json.Unmarshal(msg.Data, &o))
	assert.Equal(t, int64(10), o.ID)
	assert.Equal(t, 3, o.Size)

	expectSilence(t, b, 150*time.Millisecond)
}

func TestUserHub_EventKindsAreIndependent(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribePositions", 1)
	expectAck(t, conn)

	assert.Zero(t, h.Publish(TradeEvent(model.Trade{ID: 1, AccountID: 1})))
	assert.Zero(t, h.Publish(OrderEvent(model.Order{ID: 1, AccountID: 1})))
	assert.Equal(t, 1, h.Publish(PositionEvent(model.Position{ID: 4, AccountID: 1, Size: 0})))

	msg := next(t, conn)
	assert.Equal(t, "GatewayUserPosition", msg.Event)
	assert.JSONEq(t, `{"id":4,"accountId":1,"contractId":"","creationTimestamp":"0001-01-01T00:00:00Z","type":0,"size":0,"averagePrice":0}`, string(msg.Data))
}

func TestUserHub_AccountsFlag(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeAccounts")
	expectAck(t, conn)

	h.PublishAccount(model.Account{ID: 2, Name: "50KTC-V2-1-2", Balance: decimal.RequireFromString("49975.5")})

	msg := next(t, conn)
	assert.Equal(t, "GatewayUserAccount", msg.Event)
	var a model.Account
	require.NoError(t, json.Unmarshal(msg.Data, &a))
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("49975.5")))
	assert.Contains(t, string(msg.Data), `"balance":49975.5`, "balances are JSON numbers")

	invoke(t, conn, "UnsubscribeAccounts")
	expectAck(t, conn)
	assert.Zero(t, h.Publish(AccountEvent(model.Account{ID: 2})))
}

func TestUserHub_Unsubscribe(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeTrades", 5)
	expectAck(t, conn)
	invoke(t, conn, "UnsubscribeTrades", 5)
	expectAck(t, conn)

	assert.Zero(t, h.Publish(TradeEvent(model.Trade{ID: 1, AccountID: 5})))
}

func TestUserHub_StringAccountArgument(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeOrders", "7")
	expectAck(t, conn)

	assert.Equal(t, 1, h.Publish(OrderEvent(model.Order{ID: 1, AccountID: 7})))
}

// --- Protocol errors ---

func TestHub_UnknownMethodGetsNoReply(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeEverything", 1)
	invoke(t, conn, "SubscribeOrders", 1)

	// The first reply belongs to the second request.
	expectAck(t, conn)
	expectSilence(t, conn, 150*time.Millisecond)
}

func TestHub_InvalidJSONKeepsConnectionOpen(t *testing.T) {
	h := NewMarketHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"invoke","method":`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`)))

	invoke(t, conn, "SubscribeContractQuotes", "CON.F.US.EP.H25")
	expectAck(t, conn)
	assert.Equal(t, 1, h.Clients())
}

func TestHub_NonInvokeAndBadArgumentsAreIgnored(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	invoke(t, conn, "SubscribeOrders")
	invoke(t, conn, "SubscribeOrders", map[string]any{"id": 1})
	invoke(t, conn, "SubscribeOrders", 0)
	invoke(t, conn, "SubscribeOrders", 3)

	expectAck(t, conn)
	expectSilence(t, conn, 150*time.Millisecond)
}

func TestHub_DisconnectDiscardsSubscription(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeOrders", 1)
	expectAck(t, conn)
	require.Equal(t, 1, h.Clients())

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.Publish(OrderEvent(model.Order{ID: 1, AccountID: 1})))
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewMarketHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeContractTrades", "CON.F.US.EP.H25")
	expectAck(t, conn)

	h.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PerConnectionFIFO(t *testing.T) {
	h := NewUserHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeOrders", 1)
	expectAck(t, conn)

	for i := 1; i <= 20; i++ {
		h.PublishOrder(model.Order{ID: int64(i), AccountID: 1})
	}
	for i := 1; i <= 20; i++ {
		var o model.Order
		require.NoError(t, json.Unmarshal(next(t, conn).Data, &o))
		assert.Equal(t, int64(i), o.ID)
	}
}

// --- Market hub ---

func TestMarketHub_QuoteReachesOnlySubscriber(t *testing.T) {
	h := NewMarketHub(nil)
	url := startServer(t, h)

	sub := dial(t, url)
	other := dial(t, url)
	invoke(t, sub, "SubscribeContractQuotes", "CON.F.US.EP.H25")
	expectAck(t, sub)
	invoke(t, other, "SubscribeContractMarketDepth", "CON.F.US.EP.H25")
	expectAck(t, other)

	n := h.Publish(QuoteEvent{
		ContractID: "CON.F.US.EP.H25",
		Quote:      model.Quote{Symbol: "F.US.EP", LastPrice: decimal.RequireFromString("4512.25")},
	})
	assert.Equal(t, 1, n)

	msg := next(t, sub)
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, "GatewayQuote", msg.Event)
	assert.Equal(t, "CON.F.US.EP.H25", msg.ContractID)
	var q model.Quote
	require.NoError(t, json.Unmarshal(msg.Data, &q))
	assert.Equal(t, "F.US.EP", q.Symbol)

	expectSilence(t, other, 150*time.Millisecond)
}

func TestMarketHub_TradeAndDepthEvents(t *testing.T) {
	h := NewMarketHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeContractTrades", "X")
	expectAck(t, conn)
	invoke(t, conn, "SubscribeContractMarketDepth", "X")
	expectAck(t, conn)

	h.Publish(MarketTradeEvent{ContractID: "X", Trade: model.MarketTrade{SymbolID: "F.US.X", Volume: 3}})
	h.Publish(DepthEvent{ContractID: "X", Level: model.DepthLevel{Type: model.DomTypeBid, Volume: 20}})
	h.Publish(DepthEvent{ContractID: "Y", Level: model.DepthLevel{Type: model.DomTypeAsk}})

	assert.Equal(t, "GatewayTrade", next(t, conn).Event)
	msg := next(t, conn)
	assert.Equal(t, "GatewayDepth", msg.Event)
	assert.Equal(t, "X", msg.ContractID)
	expectSilence(t, conn, 150*time.Millisecond)
}

func TestMarketHub_SubscribedContracts(t *testing.T) {
	h := NewMarketHub(nil)
	url := startServer(t, h)

	a := dial(t, url)
	b := dial(t, url)
	invoke(t, a, "SubscribeContractQuotes", "CON.F.US.NQ.H25")
	expectAck(t, a)
	invoke(t, a, "SubscribeContractTrades", "CON.F.US.EP.H25")
	expectAck(t, a)
	invoke(t, b, "SubscribeContractMarketDepth", "CON.F.US.EP.H25")
	expectAck(t, b)
	invoke(t, b, "SubscribeContractQuotes", "CON.F.US.CL.H25")
	expectAck(t, b)

	assert.Equal(t, []string{"CON.F.US.CL.H25", "CON.F.US.EP.H25", "CON.F.US.NQ.H25"}, h.SubscribedContracts())

	invoke(t, b, "UnsubscribeContractQuotes", "CON.F.US.CL.H25")
	expectAck(t, b)
	assert.Equal(t, []string{"CON.F.US.EP.H25", "CON.F.US.NQ.H25"}, h.SubscribedContracts())
}

func TestMarketHub_EmptyContractArgumentIgnored(t *testing.T) {
	h := NewMarketHub(nil)
	url := startServer(t, h)

	conn := dial(t, url)
	invoke(t, conn, "SubscribeContractQuotes", "")
	invoke(t, conn, "SubscribeContractQuotes", 42)
	invoke(t, conn, "SubscribeContractQuotes", "CON.F.US.EP.H25")
	expectAck(t, conn)

	assert.Equal(t, []string{"CON.F.US.EP.H25"}, h.SubscribedContracts())
}

// --- Mirror ---

type mirrorSpy struct {
	mu   sync.Mutex
	hubs []string
	msgs []string
}

func (m *mirrorSpy) Mirror(hub string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hubs = append(m.hubs, hub)
	m.msgs = append(m.msgs, string(payload))
}

func TestHub_MirrorSeesEveryBroadcast(t *testing.T) {
	spy := &mirrorSpy{}
	h := NewMarketHub(spy)

	assert.Zero(t, h.Publish(QuoteEvent{ContractID: "X"}))

	require.Len(t, spy.msgs, 1)
	assert.Equal(t, "market", spy.hubs[0])
	assert.Contains(t, spy.msgs[0], `"event":"GatewayQuote"`)
	assert.Contains(t, spy.msgs[0], `"contractId":"X"`)
}

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads []string
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, string(message.([]byte)))
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(0)
	return cmd
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func TestRedisMirror_PublishesOnHubChannel(t *testing.T) {
	pub := &fakePublisher{}
	m := NewRedisMirror(pub, "gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	h := NewUserHub(m)
	h.PublishOrder(model.Order{ID: 9, AccountID: 1})

	require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "gateway:user", pub.channels[0])
	assert.Contains(t, pub.payloads[0], `"event":"GatewayUserOrder"`)
}

// --- Decoding ---

func TestDecodeInvocation(t *testing.T) {
	inv, known, err := decodeInvocation([]byte(`{"type":"invoke","method":"SubscribeOrders","arguments":[12]}`), userMethods)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, userSubscribeOrders, inv.method)

	_, known, err = decodeInvocation([]byte(`{"type":"invoke","method":"Nope","arguments":[]}`), userMethods)
	require.NoError(t, err)
	assert.False(t, known)

	_, _, err = decodeInvocation([]byte(`{"type":"event"}`), userMethods)
	assert.ErrorIs(t, err, errNotInvoke)

	_, _, err = decodeInvocation([]byte(`{`), userMethods)
	assert.ErrorIs(t, err, errMalformed)
}

func TestAccountArg(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{`[12]`, 12, true},
		{`["12"]`, 12, true},
		{`[0]`, 0, false},
		{`["abc"]`, 0, false},
		{`[1.5]`, 0, false},
		{`[]`, 0, false},
	}
	for _, tt := range tests {
		var args []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &args))
		got, err := accountArg(args)
		if tt.ok {
			assert.NoError(t, err, tt.raw)
			assert.Equal(t, tt.want, got, tt.raw)
		} else {
			assert.ErrorIs(t, err, errBadArgument, tt.raw)
		}
	}
}
