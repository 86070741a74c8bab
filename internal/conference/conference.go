// Package conference hands live class rooms to the video conferencing
// widget. The server never touches media; it only tells the client which
// room to open and tracks when a participant has left.
package conference

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const hostSuffix = " (Coach)"

// Adapter opens a conferencing room for one participant.
type Adapter interface {
	JoinRoom(roomID, displayName string) (*Handle, error)
}

// JoinInfo is everything the browser widget needs to enter the room.
type JoinInfo struct {
	Domain                   string         `json:"domain"`
	RoomName                 string         `json:"roomName"`
	DisplayName              string         `json:"displayName"`
	URL                      string         `json:"url"`
	ConfigOverwrite          map[string]any `json:"configOverwrite"`
	InterfaceConfigOverwrite map[string]any `json:"interfaceConfigOverwrite"`
}

// Handle is one participant's presence in a room.
type Handle struct {
	RoomID string
	Info   JoinInfo

	mu     sync.Mutex
	left   bool
	onLeft []func()
}

func NewHandle(roomID string, info JoinInfo) *Handle {
	return &Handle{RoomID: roomID, Info: info}
}

// OnLeft registers fn to run once the participant has left. If they already
// left, fn runs immediately.
func (h *Handle) OnLeft(fn func()) {
	h.mu.Lock()
	if h.left {
		h.mu.Unlock()
		fn()
		return
	}
	h.onLeft = append(h.onLeft, fn)
	h.mu.Unlock()
}

// Leave marks the participant as gone and runs the OnLeft callbacks. Only the
// first call has an effect.
func (h *Handle) Leave() {
	h.mu.Lock()
	if h.left {
		h.mu.Unlock()
		return
	}
	h.left = true
	callbacks := h.onLeft
	h.onLeft = nil
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (h *Handle) Left() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.left
}

// ParticipantName is the name shown inside the call.
func ParticipantName(name string, host bool) string {
	if host {
		return name + hostSuffix
	}
	return name
}

// Jitsi builds join descriptors for a Jitsi Meet deployment.
type Jitsi struct {
	domain string
	prefix string
}

var _ Adapter = (*Jitsi)(nil)

func NewJitsi(domain, roomPrefix string) *Jitsi {
	return &Jitsi{domain: domain, prefix: roomPrefix}
}

func (j *Jitsi) RoomName(roomID string) string {
	if j.prefix == "" {
		return roomID
	}
	return j.prefix + "_" + roomID
}

func (j *Jitsi) JoinRoom(roomID, displayName string) (*Handle, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	roomName := j.RoomName(roomID)
	info := JoinInfo{
		Domain:      j.domain,
		RoomName:    roomName,
		DisplayName: displayName,
		URL:         j.roomURL(roomName, displayName),
		ConfigOverwrite: map[string]any{
			"prejoinPageEnabled":  false,
			"startWithAudioMuted": false,
			"startWithVideoMuted": false,
			"disableDeepLinking":  true,
		},
		InterfaceConfigOverwrite: map[string]any{
			"MOBILE_APP_PROMO": false,
		},
	}

	return NewHandle(roomID, info), nil
}

func (j *Jitsi) roomURL(roomName, displayName string) string {
	u := url.URL{
		Scheme: "https",
		Host:   j.domain,
		Path:   "/" + roomName,
	}
	fragment := "config.prejoinPageEnabled=false&userInfo.displayName=" + fragmentValue(strconv.Quote(displayName))
	return u.String() + "#" + fragment
}

// fragmentValue escapes v so the widget's decodeURIComponent gets it back
// unchanged. Spaces must be %20 there, not +.
func fragmentValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
