// Package database opens and manages the relational store behind run
// tracking.
//
// It owns gorm dialector selection (sqlite via the pure-Go glebarez driver,
// postgres, mysql), connection pool tuning, and a small Pool wrapper exposing
// lifecycle methods (Ping, Stats, Close) plus transactional execution.
package database
