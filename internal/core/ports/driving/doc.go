// Package driving defines the interfaces through which the outside world
// drives the core: the CLI, the daemon scheduler and the push-notification
// collaborator all call in through these ports.
package driving
