package world

import "errors"

var (
	// ErrNoChunk чанк по запрошенным координатам не загружен
	ErrNoChunk = errors.New("chunk not loaded")
	// ErrInvalidCoordinate координаты не конечны или вне границ мира
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrChunkSize размер чанка или буфера некорректен
	ErrChunkSize = errors.New("invalid chunk size")
)
