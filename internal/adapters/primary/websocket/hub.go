package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

const snapshotTimeout = 5 * time.Second

// Hub owns the set of connected dashboard viewers and fans domain events
// out to them. All client-set mutation happens on the Run goroutine; the
// pumps communicate with it exclusively through channels, so the connection
// map needs no locking.
type Hub struct {
	snapshots ports.QueueSnapshotProvider
	calls     ports.CallSnapshotProvider
	logger    *slog.Logger

	// clients is the full fan-out set; rooms groups the viewers subscribed
	// to one call's transcript.
	clients map[*Client]bool
	rooms   map[uuid.UUID]map[*Client]bool

	broadcast chan domain.Event
	commands  chan command

	Register   chan *Client
	Unregister chan *Client
}

type commandKind int

const (
	cmdPong commandKind = iota
	cmdResync
	cmdSubscribeTranscript
	cmdUnsubscribeTranscript
	cmdReply
)

// command is one request from a client pump to the hub loop.
type command struct {
	kind   commandKind
	client *Client
	callID uuid.UUID
	frame  Frame
}

// NewHub creates a hub. AttachTo wires it to the event bus; Run must be
// started as a goroutine before any client registers.
func NewHub(snapshots ports.QueueSnapshotProvider, calls ports.CallSnapshotProvider, logger *slog.Logger) *Hub {
	return &Hub{
		snapshots:  snapshots,
		calls:      calls,
		logger:     logger.With("component", "ws_hub"),
		clients:    make(map[*Client]bool),
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan domain.Event, 256),
		commands:   make(chan command, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// AttachTo subscribes the hub to every event kind the dashboard renders.
// A full broadcast buffer drops the event rather than stalling a publisher.
func (h *Hub) AttachTo(bus ports.EventBus) {
	bus.Subscribe(func(ctx context.Context, event domain.Event) {
		select {
		case h.broadcast <- event:
		default:
			h.logger.Warn("broadcast buffer full, dropping event",
				"kind", event.Kind,
				"event_id", event.ID,
			)
		}
	},
		domain.EventQueueEntryAdded,
		domain.EventQueueEntryStatusChanged,
		domain.EventTranscriptUpdated,
		domain.EventOperatorStatusChanged,
		domain.EventHandoffRequested,
		domain.EventHandoffAccepted,
		domain.EventAmbulanceLocationUpdated,
	)
}

// Run is the hub's event loop. It exits when ctx is cancelled, closing
// every connected client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			return

		case client := <-h.Register:
			h.clients[client] = true
			h.logger.Info("viewer connected",
				"operator_id", client.operatorID,
				"connections", len(h.clients),
			)
			h.sendSnapshot(ctx, client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case event := <-h.broadcast:
			h.route(event)

		case cmd := <-h.commands:
			h.handleCommand(ctx, cmd)
		}
	}
}

// route translates one domain event into protocol frames.
func (h *Hub) route(event domain.Event) {
	switch event.Kind {
	case domain.EventQueueEntryAdded:
		payload, ok := event.Payload.(domain.QueueEntryAddedPayload)
		if !ok {
			return
		}
		h.broadcastAll(Frame{Type: FrameQueueAdded, Data: payload.Entry})

	case domain.EventQueueEntryStatusChanged:
		payload, ok := event.Payload.(domain.QueueStatusChangedPayload)
		if !ok {
			return
		}
		// Terminal entries leave the dashboard; everything else is a
		// row refresh.
		if payload.NewStatus.IsTerminal() {
			h.broadcastAll(Frame{
				Type: FrameQueueRemoved,
				Data: QueueRemoval{ID: payload.Entry.ID.String()},
			})
			return
		}
		h.broadcastAll(Frame{
			Type: FrameQueueUpdated,
			Data: newQueueDelta(payload.Entry, time.Now().UTC()),
		})

	case domain.EventTranscriptUpdated:
		payload, ok := event.Payload.(domain.TranscriptUpdatedPayload)
		if !ok {
			return
		}
		h.broadcastRoom(payload.CallID, Frame{
			Type: FrameTranscriptUpdated,
			Data: TranscriptDelta{
				CallID:     payload.CallID.String(),
				Transcript: payload.Transcript,
				LastUpdate: payload.LastUpdate,
			},
		})

	case domain.EventOperatorStatusChanged:
		h.broadcastAll(Frame{Type: FrameOperatorStatusChanged, Data: event.Payload})

	case domain.EventHandoffRequested:
		h.broadcastAll(Frame{Type: FrameHandoffRequested, Data: event.Payload})

	case domain.EventHandoffAccepted:
		h.broadcastAll(Frame{Type: FrameHandoffAccepted, Data: event.Payload})

	case domain.EventAmbulanceLocationUpdated:
		h.broadcastAll(Frame{Type: FrameAmbulanceLocation, Data: event.Payload})
	}
}

func (h *Hub) handleCommand(ctx context.Context, cmd command) {
	if !h.clients[cmd.client] {
		return
	}

	switch cmd.kind {
	case cmdPong:
		h.enqueue(cmd.client, pongFrame(time.Now()))

	case cmdResync:
		h.sendSnapshot(ctx, cmd.client)

	case cmdSubscribeTranscript:
		h.subscribeTranscript(ctx, cmd.client, cmd.callID)

	case cmdUnsubscribeTranscript:
		h.unsubscribeTranscript(cmd.client)

	case cmdReply:
		h.enqueue(cmd.client, cmd.frame)
	}
}

// sendSnapshot pushes the full set of non-terminal entries to one viewer.
func (h *Hub) sendSnapshot(ctx context.Context, client *Client) {
	lookupCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	entries, err := h.snapshots.ListActive(lookupCtx)
	if err != nil {
		h.logger.Error("initial snapshot failed",
			"operator_id", client.operatorID,
			"error", err,
		)
		h.enqueue(client, errorFrame("SNAPSHOT_FAILED", "Could not load queue snapshot"))
		return
	}

	h.enqueue(client, Frame{Type: FrameQueueInitial, Data: entries})
}

// subscribeTranscript replaces the client's transcript subscription and
// flushes the current transcript so the viewer starts from a known state.
func (h *Hub) subscribeTranscript(ctx context.Context, client *Client, callID uuid.UUID) {
	h.unsubscribeTranscript(client)

	if h.rooms[callID] == nil {
		h.rooms[callID] = make(map[*Client]bool)
	}
	h.rooms[callID][client] = true
	client.subscribedCallID = &callID

	lookupCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	call, err := h.calls.GetCall(lookupCtx, callID)
	if err != nil {
		h.enqueue(client, errorFrame("CALL_NOT_FOUND", "Unknown call"))
		return
	}

	lastUpdate := call.StartedAt
	if call.UpdatedAt != nil {
		lastUpdate = *call.UpdatedAt
	}
	h.enqueue(client, Frame{
		Type: FrameTranscriptUpdated,
		Data: TranscriptDelta{
			CallID:     callID.String(),
			Transcript: call.Transcript,
			LastUpdate: lastUpdate,
		},
	})
}

func (h *Hub) unsubscribeTranscript(client *Client) {
	if client.subscribedCallID == nil {
		return
	}
	callID := *client.subscribedCallID
	if room, ok := h.rooms[callID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, callID)
		}
	}
	client.subscribedCallID = nil
}

func (h *Hub) broadcastAll(frame Frame) {
	for client := range h.clients {
		h.enqueue(client, frame)
	}
}

func (h *Hub) broadcastRoom(callID uuid.UUID, frame Frame) {
	for client := range h.rooms[callID] {
		h.enqueue(client, frame)
	}
}

// enqueue delivers best-effort. A viewer whose buffer is full is assumed
// dead or stuck and is dropped so it cannot stall the fan-out.
func (h *Hub) enqueue(client *Client, frame Frame) {
	select {
	case client.send <- frame:
	default:
		h.logger.Warn("viewer send buffer full, disconnecting",
			"operator_id", client.operatorID,
		)
		h.removeClient(client)
	}
}

func (h *Hub) removeClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	h.unsubscribeTranscript(client)
	close(client.send)
	h.logger.Info("viewer disconnected",
		"operator_id", client.operatorID,
		"connections", len(h.clients),
	)
}
