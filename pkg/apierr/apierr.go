// Package apierr defines the user-facing error taxonomy of the bot.
//
// Every error a handler is allowed to surface to the chat user is a *Tip with
// a short human message. Anything that is not a Tip is an internal fault: the
// gateway logs it in full and replies with a generic message instead.
package apierr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	InvalidArgument Kind = iota
	SessionTimeout
	NoResult
	EmptyResponse
	Network
	RemoteCode
	AlreadyBound
	NotBound
)

var kindMessages = map[Kind]string{
	InvalidArgument: "指令参数错误",
	SessionTimeout:  "等待回复超时，指令失效",
	NoResult:        "未搜索到内容",
	EmptyResponse:   "请求结果为空，网站返回内容错误",
	Network:         "请求网络失败",
	AlreadyBound:    "当前用户已绑定，无法重复绑定",
	NotBound:        "当前用户未绑定",
}

// remoteCodeMessages maps documented upstream application codes to human
// messages. Unmapped codes fall through to a generic line with the code.
var remoteCodeMessages = map[int]string{
	17701: "图片体积过大",
	17702: "识别服务繁忙，请稍后再试",
	17703: "请求参数错误",
	17704: "识别服务配额不足",
	17721: "图片下载失败",
	17722: "未检测到角色",
	17799: "识别模型过载",
}

type Tip struct {
	Kind    Kind
	Message string
	Code    int // remote application code, RemoteCode only
	Cause   error
}

func (t *Tip) Error() string {
	if t.Cause != nil {
		return fmt.Sprintf("%s: %v", t.Message, t.Cause)
	}
	return t.Message
}

func (t *Tip) Unwrap() error { return t.Cause }

// Is lets errors.Is match two tips by kind, so sentinel-style comparisons
// like errors.Is(err, apierr.New(NoResult)) work without shared pointers.
func (t *Tip) Is(target error) bool {
	other, ok := target.(*Tip)
	return ok && other.Kind == t.Kind
}

func New(kind Kind) *Tip {
	return &Tip{Kind: kind, Message: kindMessages[kind]}
}

func Newf(kind Kind, format string, args ...interface{}) *Tip {
	return &Tip{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error) *Tip {
	return &Tip{Kind: kind, Message: kindMessages[kind], Cause: cause}
}

// Remote builds a RemoteCode tip from an upstream application code.
func Remote(code int) *Tip {
	msg, ok := remoteCodeMessages[code]
	if !ok {
		msg = fmt.Sprintf("远端服务返回错误码 %d", code)
	}
	return &Tip{Kind: RemoteCode, Message: msg, Code: code}
}

func IsKind(err error, kind Kind) bool {
	var t *Tip
	return errors.As(err, &t) && t.Kind == kind
}

// UserMessage translates any error into the text shown to the chat user.
// Non-tip errors never leak internals.
func UserMessage(err error) string {
	var t *Tip
	if errors.As(err, &t) {
		return t.Message
	}
	return "发生未知错误，请联系管理员查看日志"
}
