// Package outreach implements the recruiting outreach engine: rendering
// coach emails from campaign templates, selecting uncontacted coaches,
// enforcing daily quotas and per-coach dedup, running paced send loops, and
// reconciling inbound coach replies back to their campaign.
//
// The service depends on the Repository interface defined here and on a
// sending.Sender for the outbound transport. Repository implementations live
// in repository/postgres/ and repository/memory/. Quota reservation and
// dedup are pushed down to the repository as atomic conditional writes, so
// concurrent runs of the same campaign cannot double-send or overshoot the
// daily limit.
package outreach
