package main

// Client-to-server messages. Every message after the initial join carries the
// session's secret key, which authorizes the action without re-sending the
// player's identity.

type joinRoomMessage struct {
	Type     string `json:"type"`     // "joinRoom"
	ID       string `json:"id"`       // client-chosen stable identifier
	Key      string `json:"key"`      // per-session secret
	Name     string `json:"name"`     // display name
	RoomCode string `json:"roomCode"` // room to join or create
}

type settingsMessage struct {
	Type     string   `json:"type"` // "settings"
	Key      string   `json:"key"`
	Settings Settings `json:"settings"`
}

type startGameMessage struct {
	Type     string   `json:"type"` // "startGame"
	Key      string   `json:"key"`
	Settings Settings `json:"settings"`
}

type updateTitleMessage struct {
	Type  string `json:"type"` // "updateTitle"
	Key   string `json:"key"`
	Title string `json:"title"`
}

type submitPageMessage struct {
	Type  string `json:"type"` // "submitPage"
	Key   string `json:"key"`
	Mode  string `json:"mode"`  // "Write" or "Draw"
	Value string `json:"value"` // text or PNG data URI
}

type presentBookMessage struct {
	Type string `json:"type"` // "presentBook"
	Key  string `json:"key"`
	Book string `json:"book"` // owner identifier of the book to present
}

// keyedMessage covers the remaining actions that carry no payload beyond the
// key: presentForward, presentBack, presentOverride, presentFinish, finish.
type keyedMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Server-to-client messages.

type userInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type joinedMessage struct {
	Type     string     `json:"type"` // "joined"
	RoomCode string     `json:"roomCode"`
	Users    []userInfo `json:"users"`
	Host     string     `json:"host"`
	Settings Settings   `json:"settings"`
}

type userJoinMessage struct {
	Type string `json:"type"` // "userJoin" or "userReconnect"
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userLeaveMessage struct {
	Type string `json:"type"` // "userLeave"
	ID   string `json:"id"`
}

type userHostMessage struct {
	Type string `json:"type"` // "userHost"
	ID   string `json:"id"`
}

type settingsUpdateMessage struct {
	Type     string   `json:"type"` // "settings"
	Settings Settings `json:"settings"`
}

type startGameBroadcast struct {
	Type  string              `json:"type"` // "startGame"
	Books map[string][]string `json:"books"`
	Start string              `json:"start"` // first page mode
}

type titleMessage struct {
	Type  string `json:"type"` // "title"
	ID    string `json:"id"`
	Title string `json:"title"`
}

type pageMessage struct {
	Type   string `json:"type"` // "page"
	ID     string `json:"id"`   // book owner
	Page   int    `json:"page"`
	Value  string `json:"value"`
	Author string `json:"author"`
	Mode   string `json:"mode"`
}

type simpleBroadcast struct {
	Type string `json:"type"` // "pageForward", "timerFinish", "startPresenting", ...
}

type presentBookBroadcast struct {
	Type      string `json:"type"` // "presentBook"
	Book      string `json:"book"`
	Presenter string `json:"presenter"`
}

type kickMessage struct {
	Type   string `json:"type"` // "kick"
	Reason string `json:"reason"`
}
