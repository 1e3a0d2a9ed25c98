package bot

// State — состояние цикла опроса.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StatePolling
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}
