// Package stomp is a minimal STOMP 1.2 client: frame codec, incremental
// parser, byte-stream transport and the connection session.
//
// The session never sends heartbeats (heart-beat 0,N) and relies on the
// broker's heartbeats plus Protocol.LastReceived for liveness; monitoring
// the gap is the caller's job. Subscriptions are acknowledged automatically
// by the broker (ack:auto).
//
//	p := stomp.NewProtocol(stomp.NewTCPDialer("localhost", 61613), stomp.Options{})
//	if err := p.Connect(ctx); err != nil {
//	    return err
//	}
//	defer p.Disconnect(context.Background())
//	tok, _ := p.Subscribe(ctx, "/queue/fedora", handle, nil)
//	for {
//	    f, err := p.ReceiveFrame(ctx)
//	    ...
//	}
package stomp
