package websocket

// State feed. Carries the full participant row.
const (
	// PARTICIPANT_INSERT announces a checked-in participant
	PARTICIPANT_INSERT = "participant:insert"

	// PARTICIPANT_UPDATE announces a changed participant (winner, rename, reset)
	PARTICIPANT_UPDATE = "participant:update"

	// PARTICIPANT_DELETE announces a removed participant
	PARTICIPANT_DELETE = "participant:delete"
)

// Snapshot exchange
const (
	// SYNC_SNAPSHOT carries the full participant list and game status
	SYNC_SNAPSHOT = "sync:snapshot"

	// SYNC_REQUEST is sent by a client that wants a fresh snapshot
	SYNC_REQUEST = "sync:request"

	// CLIENT_HEARTBEAT is answered with SERVER_HEARTBEAT
	CLIENT_HEARTBEAT = "client:heartbeat"
)

// Transient game events
const (
	// COUNTDOWN_START starts the pre-spin countdown on every client
	COUNTDOWN_START = "countdown_start"

	// WHEEL_SPINNING carries the authoritative winner and target rotation
	WHEEL_SPINNING = "wheel_spinning"

	// WINNER_ANNOUNCED follows a committed winner
	WINNER_ANNOUNCED = "winner_announced"

	// SPIN_ABORTED cancels a spin whose winner disappeared
	SPIN_ABORTED = "spin_aborted"

	// SPIN_FAILED reports a winner that could not be persisted
	SPIN_FAILED = "spin_failed"

	CHECKIN_LOCKED   = "checkin_locked"
	CHECKIN_UNLOCKED = "checkin_unlocked"

	// GAME_RESET clears winners and cancels any spin in flight
	GAME_RESET = "game_reset"
)

// Service messages
const (
	SERVER_ERROR          = "server:error"
	SERVER_BUFFER_WARNING = "server:buffer_warning"
	SERVER_HEARTBEAT      = "server:heartbeat"
)
