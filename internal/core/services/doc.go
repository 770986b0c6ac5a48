// Package services implements the driving ports: indexing, the four search
// modes, tag refresh, the embedding worker, the backfill and the scheduler.
// Adapters arrive through constructors as driven ports.
package services
