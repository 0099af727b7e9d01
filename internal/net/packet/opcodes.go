package packet

// Client → coordinator.
const (
	C_OPCODE_CATCH     byte = 0x01
	C_OPCODE_SUBSCRIBE byte = 0x02
	C_OPCODE_PING      byte = 0x03
)

// Coordinator → client.
const (
	S_OPCODE_CATCH_RESULT   byte = 0x81
	S_OPCODE_PONG           byte = 0x83
	S_OPCODE_ALIVE_SNAPSHOT byte = 0x90
	S_OPCODE_QUEUE_SNAPSHOT byte = 0x91
)

// Coordinator ↔ world service. Every request carries a request id that the
// reply echoes back.
const (
	W_OPCODE_SPAWN       byte = 0x10
	W_OPCODE_SPAWN_ACK   byte = 0x11
	W_OPCODE_SET_PEN     byte = 0x12
	W_OPCODE_SET_PEN_ACK byte = 0x13
	W_OPCODE_PING        byte = 0x14
	W_OPCODE_PONG        byte = 0x15
)

// Snapshot topics carried by C_OPCODE_SUBSCRIBE.
const (
	TopicAlive byte = 1 << 0
	TopicQueue byte = 1 << 1
)
