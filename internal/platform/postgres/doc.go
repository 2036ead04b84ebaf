// Package postgres provides a PostgreSQL-backed task registry so that task
// state survives restarts and can be shared by several API processes.
// It owns the analysis_tasks schema through embedded goose migrations and
// maps driver errors onto the task package's registry errors.
package postgres
