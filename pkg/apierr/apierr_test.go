package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMatching(t *testing.T) {
	err := New(NoResult)
	assert.True(t, IsKind(err, NoResult))
	assert.False(t, IsKind(err, Network))

	// matching survives wrapping
	wrapped := fmt.Errorf("lookup v17: %w", err)
	assert.True(t, IsKind(wrapped, NoResult))
	assert.True(t, errors.Is(wrapped, New(NoResult)))

	assert.False(t, IsKind(errors.New("plain"), NoResult))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Network, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "请求网络失败")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewfMessage(t *testing.T) {
	err := Newf(InvalidArgument, "无效的 VNDB ID「%s」", "z9")
	assert.True(t, IsKind(err, InvalidArgument))
	assert.Equal(t, "无效的 VNDB ID「z9」", err.Message)
}

func TestRemoteCodes(t *testing.T) {
	err := Remote(17799)
	assert.True(t, IsKind(err, RemoteCode))
	assert.Equal(t, 17799, err.Code)
	assert.Equal(t, "识别模型过载", err.Message)

	// unmapped codes still surface the code itself
	unknown := Remote(17000)
	assert.Equal(t, 17000, unknown.Code)
	assert.Contains(t, unknown.Message, "17000")
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "未搜索到内容", UserMessage(New(NoResult)))
	assert.Equal(t, "等待回复超时，指令失效", UserMessage(New(SessionTimeout)))

	// internals never leak
	leaky := errors.New("dial tcp 10.0.0.1: i/o timeout")
	msg := UserMessage(leaky)
	assert.Equal(t, "发生未知错误，请联系管理员查看日志", msg)
	assert.NotContains(t, msg, "10.0.0.1")
}

func TestTipCodeSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("detect: %w", Remote(17799))
	var tip *Tip
	require.True(t, errors.As(wrapped, &tip))
	assert.Equal(t, 17799, tip.Code)
}
