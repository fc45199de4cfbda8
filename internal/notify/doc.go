// Package notify runs the TCP listener cameras push motion alerts to.
//
// Cameras are configured to request http://<bridge>:<port>/motion/<address>
// when they detect motion. The listener does not speak HTTP: it reads the
// request line, echoes the bytes back and closes the connection, then hands
// the bytes to camera.NotificationBridge for parsing.
package notify
