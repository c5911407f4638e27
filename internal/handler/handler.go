// Package handler maps a decoded wire.Request onto the matching
// collection.Collection operation and builds the wire.Response to send
// back. The caller is responsible for resolving the named collection. Handle
// takes no lock of its own: it only calls exported Collection methods, each
// of which takes the collection's own lock.
package handler

import (
	"fmt"

	"github.com/dreamware/linedb/internal/collection"
	"github.com/dreamware/linedb/internal/jsonscan"
	"github.com/dreamware/linedb/internal/wire"
)

// Handle executes req against col and returns the response to send back.
// It never returns an error itself: every failure becomes a status=error
// wire.Response, so the caller can always encode and write the result.
func Handle(req wire.Request, col *collection.Collection) wire.Response {
	switch req.Operation {
	case "insert":
		return handleInsert(req, col)
	case "find":
		return handleFind(req, col)
	case "delete":
		return handleDelete(req, col)
	default:
		return wire.Error(fmt.Sprintf("Unknown operation: %s", req.Operation))
	}
}

// insertPayload picks the request's payload: "data" if present, else
// "query" for backward compatibility with earlier one-field clients.
func insertPayload(req wire.Request) string {
	if req.Data != "" {
		return req.Data
	}
	return req.Query
}

func handleInsert(req wire.Request, col *collection.Collection) wire.Response {
	payload := jsonscan.Trim(insertPayload(req))
	if payload == "" {
		return wire.Error("Empty insert data")
	}

	switch payload[0] {
	case '{':
		if err := col.Insert(payload); err != nil {
			return wire.Error(err.Error())
		}
		return wire.Success("Inserted 1 document", 1, "[]")
	case '[':
		n, err := col.InsertMany(payload)
		if err != nil {
			return wire.Error(err.Error())
		}
		return wire.Success(fmt.Sprintf("Inserted %d documents", n), n, "[]")
	default:
		return wire.Error("Insert data is not a JSON object or array")
	}
}

func handleFind(req wire.Request, col *collection.Collection) wire.Response {
	filter := req.Query
	if jsonscan.Trim(filter) == "" {
		filter = "{}"
	}

	jsonArray, count, err := col.Find(filter)
	if err != nil {
		return wire.Error(err.Error())
	}
	return wire.Success(fmt.Sprintf("Fetched %d documents", count), count, jsonArray)
}

func handleDelete(req wire.Request, col *collection.Collection) wire.Response {
	filter := req.Query
	if jsonscan.Trim(filter) == "" {
		filter = "{}"
	}

	count, err := col.Delete(filter)
	if err != nil {
		return wire.Error(err.Error())
	}
	return wire.Success(fmt.Sprintf("Deleted %d documents", count), count, "[]")
}
