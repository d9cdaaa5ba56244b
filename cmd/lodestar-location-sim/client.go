// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/messaging"
)

// simClient is an in-process stand-in for a homeserver connection.
// Sends are logged instead of transmitted, and beacon-info writes
// are echoed back through the subscribed listener the way a real
// sync stream would deliver the server's copy.
type simClient struct {
	userID ref.UserID
	logger *slog.Logger

	eventCounter atomic.Int64

	mu       sync.Mutex
	listener messaging.BeaconListener
	beacons  map[ref.BeaconID]messaging.BeaconInfoEvent
}

func newSimClient(userID ref.UserID, logger *slog.Logger) *simClient {
	return &simClient{
		userID:  userID,
		logger:  logger,
		beacons: make(map[ref.BeaconID]messaging.BeaconInfoEvent),
	}
}

func (c *simClient) nextEventID() ref.EventID {
	return ref.MustParseEventID(fmt.Sprintf("$sim-%d", c.eventCounter.Add(1)))
}

func (c *simClient) UserID() ref.UserID { return c.userID }

func (c *simClient) VisibleRooms() []messaging.RoomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	byRoom := make(map[ref.RoomID][]messaging.BeaconInfoEvent)
	for _, event := range c.beacons {
		byRoom[event.RoomID] = append(byRoom[event.RoomID], event)
	}
	out := make([]messaging.RoomState, 0, len(byRoom))
	for room, events := range byRoom {
		out = append(out, messaging.RoomState{RoomID: room, BeaconInfos: events})
	}
	return out
}

func (c *simClient) SubscribeBeacons(listener messaging.BeaconListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listener = nil
	}
}

func (c *simClient) SendLocation(ctx context.Context, room ref.RoomID, content messaging.LocationContent) (ref.EventID, error) {
	eventID := c.nextEventID()
	c.logger.Info("location published",
		"room_id", room,
		"geo_uri", content.Location.URI,
		"beacon_event", content.RelatesTo.EventID,
		"event_id", eventID)
	return eventID, nil
}

func (c *simClient) SetBeaconInfo(ctx context.Context, room ref.RoomID, content messaging.BeaconInfo) (ref.EventID, error) {
	event := messaging.BeaconInfoEvent{
		ID:              c.nextEventID(),
		RoomID:          room,
		Sender:          c.userID,
		OriginTimestamp: time.Now(),
		Content:         content,
	}
	c.logger.Info("beacon info updated",
		"room_id", room,
		"live", content.Live,
		"event_id", event.ID)
	c.store(event, false)
	return event.ID, nil
}

func (c *simClient) CreateBeacon(ctx context.Context, room ref.RoomID, content messaging.BeaconInfo) (ref.EventID, error) {
	event := messaging.BeaconInfoEvent{
		ID:              c.nextEventID(),
		RoomID:          room,
		Sender:          c.userID,
		OriginTimestamp: time.Now(),
		Content:         content,
	}
	c.logger.Info("beacon created",
		"room_id", room,
		"timeout", content.Timeout(),
		"event_id", event.ID)
	c.store(event, true)
	return event.ID, nil
}

// store records the event and echoes it to the listener from a
// fresh goroutine, mimicking the round trip through the server.
func (c *simClient) store(event messaging.BeaconInfoEvent, created bool) {
	c.mu.Lock()
	_, existed := c.beacons[event.BeaconID()]
	c.beacons[event.BeaconID()] = event
	listener := c.listener
	c.mu.Unlock()
	if listener == nil {
		return
	}
	go func() {
		// Simulated network latency before the sync stream echo.
		time.Sleep(50 * time.Millisecond)
		if created && !existed {
			listener.OnBeaconNew(event)
		} else {
			listener.OnBeaconUpdate(event)
		}
	}()
}
