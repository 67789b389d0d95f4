// Package jenkins drains and restores the CI node that node-janitor runs on.
//
// Before destructive cleanup the node is marked temporarily offline so the
// controller stops scheduling builds onto it; afterwards it is brought back
// online. Only an idle node is taken offline: wiping the workspace under a
// running build would break it.
//
// Two implementations of NodeController exist. Client talks to the Jenkins
// REST API. Noop is used when no controller URL is configured and always
// reports success, so the janitor can run on hosts without Jenkins.
package jenkins
