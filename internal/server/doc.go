// Package server exposes the HTTP control surface for the danmaku service.
//
// The JSON API manages the room list (add, remove, start, stop, bulk
// operations), the content filter, and buffered history, and reports
// service status. A websocket endpoint streams live events to clients as
// they pass the sink. Mutations to the room list and filter are persisted
// to the room file when one is configured.
package server
