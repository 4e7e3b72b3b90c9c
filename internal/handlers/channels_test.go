package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/linkfield/clientd/internal/channel"
	"github.com/linkfield/clientd/pkg/response"
)

type blockingConn struct {
	closed chan struct{}
}

func newBlockingConn() *blockingConn {
	return &blockingConn{closed: make(chan struct{})}
}

func (c *blockingConn) ReadMessage() ([]byte, error) {
	<-c.closed
	return nil, errors.New("use of closed connection")
}

func (c *blockingConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type fakeDialer struct{}

func (fakeDialer) Dial(ctx context.Context, topic string) (channel.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newBlockingConn(), nil
}

func TestChannelHandlerConnectAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager, err := channel.NewManager(fakeDialer{})
	require.NoError(t, err)
	defer manager.Close()

	handler, err := NewChannelHandler(manager)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{gin.Param{Key: "topic", Value: "jobs"}}
	handler.Connect(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	require.Eventually(t, func() bool {
		return manager.Status("jobs") == channel.StatusConnected
	}, 2*time.Second, 10*time.Millisecond)

	listRecorder := httptest.NewRecorder()
	listCtx, _ := gin.CreateTestContext(listRecorder)
	handler.List(listCtx)
	require.Equal(t, http.StatusOK, listRecorder.Code)

	infos, payload := decodeData[[]channel.Info](t, listRecorder)
	require.Len(t, infos, 1)
	require.Equal(t, "jobs", infos[0].Topic)
	require.Equal(t, channel.StatusConnected, infos[0].Status)
	require.NotNil(t, payload.Meta)
	require.Equal(t, 1, payload.Meta.Total)
}

func TestChannelHandlerDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager, err := channel.NewManager(fakeDialer{})
	require.NoError(t, err)
	defer manager.Close()

	handler, err := NewChannelHandler(manager)
	require.NoError(t, err)

	require.NoError(t, manager.Connect("dashboard"))
	require.Eventually(t, func() bool {
		return manager.Status("dashboard") == channel.StatusConnected
	}, 2*time.Second, 10*time.Millisecond)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{gin.Param{Key: "topic", Value: "dashboard"}}
	handler.Disconnect(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, channel.StatusDisconnected, manager.Status("dashboard"))
}

func TestChannelHandlerConnectRequiresTopic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager, err := channel.NewManager(fakeDialer{})
	require.NoError(t, err)
	defer manager.Close()

	handler, err := NewChannelHandler(manager)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	handler.Connect(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "BAD_REQUEST", payload.Error.Code)
}
