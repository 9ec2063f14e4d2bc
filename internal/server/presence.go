package server

// presenceNotifier fans a user's status change out to every authenticated
// connection, including the connection that triggered it. Only the online
// transition is announced; disconnects do not produce an offline event.
type presenceNotifier struct {
	registry *registry
	send     sendFunc
}

func (p *presenceNotifier) announce(userID int64, status string) {
	frame := newUserStatusFrame(userID, status)
	for _, c := range p.registry.allAuthenticated() {
		p.send(c, frame)
	}
}
