package modelwebsocket

import "errors"

type Action string

const (
	Ping Action = "ping"
)

var ClientActions = []Action{
	Ping,
}

const (
	Pong       Action = "pong"
	Revalidate Action = "revalidate"
)

var ServerActions = []Action{
	Pong,
	Revalidate,
}

func ActionFromString(a string) (Action, error) {
	switch a {
	case string(Ping):
		return Ping, nil
	case string(Pong):
		return Pong, nil
	case string(Revalidate):
		return Revalidate, nil
	}
	return "", errors.New("unsuported action name")
}

func (s Action) String() string {
	switch s {
	case Ping:
		return string(Ping)
	case Pong:
		return string(Pong)
	case Revalidate:
		return string(Revalidate)
	}
	return "unknown"
}

type Message struct {
	Action  Action `json:"action"`
	Content string `json:"content,omitempty"`
}
