package session

import (
	log "github.com/sirupsen/logrus"
)

// Notifier receives the user-facing session events; the dashboard showed
// these as toasts, the CLI prints them. Implementations must not block.
type Notifier interface {
	LoginSucceeded(username, durationLabel string)
	LoginFailed(message string)
	RateLimited(message string)
	ConnectionFailed()
	SessionExpired()
	LoggedOut()
}

// Navigator is the redirect-to-login-surface hook.
type Navigator interface {
	NavigateToLogin()
}

// LogNotifier writes session events to the log. The default when embedding
// the controller without a UI.
type LogNotifier struct{}

func (LogNotifier) LoginSucceeded(username, durationLabel string) {
	log.Infof("login successful, welcome back %s; session expires in %s", username, durationLabel)
}

func (LogNotifier) LoginFailed(message string) {
	log.Warnf("login failed: %s", message)
}

func (LogNotifier) RateLimited(message string) {
	log.Warnf("login rate-limited: %s", message)
}

func (LogNotifier) ConnectionFailed() {
	log.Errorf("unable to connect to the server, please try again")
}

func (LogNotifier) SessionExpired() {
	log.Warnln("session expired, please log in again")
}

func (LogNotifier) LoggedOut() {
	log.Infoln("logged out")
}

// NopNavigator is used where there is no login surface to switch to.
type NopNavigator struct{}

func (NopNavigator) NavigateToLogin() {}
