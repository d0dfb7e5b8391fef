// Package api serves exposed things over HTTP and WebSocket.
//
// The route layout follows the Web Thing REST shape:
//
//	GET  /                                        root description
//	GET  /things/{thingID}                        thing description
//	GET  /things/{thingID}/properties             all property values
//	GET  /things/{thingID}/properties/{name}      one property value
//	PUT  /things/{thingID}/properties/{name}      external write
//	GET  /things/{thingID}/properties/{name}/history
//	GET  /things/{thingID}/actions                action records
//	POST /things/{thingID}/actions/{name}         request an action
//	GET  /things/{thingID}/actions/{name}/{actionID}
//	GET  /ws                                      WebSocket
//	GET  /health, /metrics
//
// In single mode the root is the thing description itself; in multiple
// mode it is the collection name plus every description.
//
// Handlers reach things only through their Handle, copy values out under
// the read lock and encode after releasing it. A poisoned handle answers
// 503 Service Unavailable.
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["thing:humidity-sensor"]}}
// (or "*" for every thing) and receive one propertyStatus event per
// committed value. The Hub is registered with the notification dispatcher
// as a sink, so broadcasting never runs on an update loop.
package api
