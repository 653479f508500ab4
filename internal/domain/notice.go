package domain

import "time"

// NoticeLevel is the toast style.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a transient user-visible message.
type Notice struct {
	ID        string      `json:"id"`
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"createdAt"`
}

// User-visible texts, in the dashboard's display locale (id-ID).
const (
	MsgBootstrapFailed    = "Gagal memuat data. Silakan refresh halaman."
	MsgAuthEventFailed    = "Terjadi kesalahan saat memproses autentikasi"
	MsgSignInFailed       = "Error saat login"
	MsgSignInSucceeded    = "Berhasil masuk"
	MsgSignUpFailed       = "Error saat mendaftar"
	MsgSignUpDuplicate    = "Email sudah terdaftar. Silakan login."
	MsgSignUpSucceeded    = "Pendaftaran berhasil! Silakan cek email Anda untuk verifikasi."
	MsgSignOutFailed      = "Error saat logout"
	MsgSignOutSucceeded   = "Berhasil keluar"
	MsgDashboardForbidden = "Anda tidak memiliki akses untuk melihat metrik dashboard."
)

// ClientEventType tags messages pushed on the auth stream.
type ClientEventType string

const (
	ClientEventState    ClientEventType = "state"
	ClientEventNotice   ClientEventType = "notice"
	ClientEventNavigate ClientEventType = "navigate"
)

// ClientEvent is one message on GET /v1/auth/stream.
type ClientEvent struct {
	Type   ClientEventType `json:"type"`
	State  *AuthState      `json:"state,omitempty"`
	Notice *Notice         `json:"notice,omitempty"`
	Path   string          `json:"path,omitempty"`
}
