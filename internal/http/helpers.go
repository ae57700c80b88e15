package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kakeibo/internal/core"
)

var errInvalidDate = errors.New("invalid date")

// userError maps a ledger error to a status code and a message fit for
// the page. Details stay in the logs.
func userError(err error) (int, string) {
	var (
		credErr   *core.CredentialError
		authErr   *core.AuthError
		remoteErr *core.RemoteError
		decodeErr *core.DecodeError
		rangeErr  *core.RangeError
	)
	switch {
	case errors.Is(err, errInvalidDate), errors.Is(err, core.ErrZeroDate):
		return http.StatusUnprocessableEntity, "日付が不正です"
	case errors.Is(err, core.ErrInvalidType):
		return http.StatusUnprocessableEntity, "収支の種類が不正です"
	case errors.Is(err, core.ErrInvalidCategory):
		return http.StatusUnprocessableEntity, "カテゴリが不正です"
	case errors.Is(err, core.ErrNegativeAmount):
		return http.StatusUnprocessableEntity, "金額は0以上で入力してください"
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrSignMismatch):
		return http.StatusUnprocessableEntity, "金額が不正です"
	case errors.Is(err, core.ErrDescriptionLimit):
		return http.StatusUnprocessableEntity, "内容は200文字以内で入力してください"
	case errors.As(err, &rangeErr):
		return http.StatusConflict, "指定された行が見つかりません。一覧を更新してください。"
	case errors.As(err, &credErr):
		return http.StatusInternalServerError, "認証情報が見つかりません"
	case errors.As(err, &authErr):
		return http.StatusBadGateway, "スプレッドシートへのアクセスが拒否されました"
	case errors.As(err, &decodeErr):
		return http.StatusBadGateway, "スプレッドシートを読み込めませんでした。"
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway, "スプレッドシートに接続できませんでした"
	default:
		return http.StatusInternalServerError, "エラーが発生しました"
	}
}

// sanitizeInput trims s and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
