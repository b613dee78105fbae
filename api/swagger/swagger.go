package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Weekly timetable generation, maintenance and reporting",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Generation, listing, manual moves and exports"},
        {"name": "Reports", "description": "Faculty load and room utilization"}
    ],
    "paths": {
        "/timetable/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate the weekly timetable",
                "description": "Replaces the stored timetable only when a feasible solution is found.",
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/GenerateEnvelope"}},
                    "409": {"description": "Generation already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Courses, faculty, rooms or sections missing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No feasible timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Persistence failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List timetable entries",
                "parameters": [
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "roomId", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string", "enum": ["Mon", "Tue", "Wed", "Thu", "Fri"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/entries/{id}/check-move": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Check whether an entry can move to another slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "Check result", "schema": {"$ref": "#/definitions/MoveCheckResponse"}},
                    "404": {"description": "Entry not found"}
                }
            }
        },
        "/timetable/entries/{id}/move": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Move an entry to another slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "Moved"},
                    "409": {"description": "Move conflicts with another entry"}
                }
            }
        },
        "/timetable/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export the stored timetable",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"name": "sectionId", "in": "query", "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "roomId", "in": "query", "type": "string"},
                    {"name": "day", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/timetable/export/link": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Issue a signed download link for the last generated export",
                "responses": {
                    "200": {"description": "Signed link", "schema": {"$ref": "#/definitions/ExportLink"}},
                    "403": {"description": "Admin role required"},
                    "404": {"description": "Nothing generated yet"}
                }
            }
        },
        "/timetable/export/download": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download the generated export",
                "security": [],
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid, expired or superseded token"}
                }
            }
        },
        "/reports/faculty-load": {
            "get": {
                "tags": ["Reports"],
                "summary": "Faculty load against advisory maximum hours",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/room-utilization": {
            "get": {
                "tags": ["Reports"],
                "summary": "Share of the 20 weekly slots booked per room",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "MoveEntryRequest": {
            "type": "object",
            "required": ["day", "startTime"],
            "properties": {
                "day": {"type": "string", "enum": ["Mon", "Tue", "Wed", "Thu", "Fri"]},
                "startTime": {"type": "string", "enum": ["09", "11", "01", "03"]}
            }
        },
        "MoveCheckResponse": {
            "type": "object",
            "properties": {
                "conflict": {"type": "boolean"},
                "reason": {"type": "string"},
                "conflicts": {"type": "array", "items": {"type": "object"}}
            }
        },
        "GenerationStats": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "solver_status": {"type": "string"},
                "wall_time_ms": {"type": "integer"},
                "branches": {"type": "integer"},
                "conflicts": {"type": "integer"},
                "variables": {"type": "integer"},
                "constraints": {"type": "integer"},
                "warnings": {"type": "array", "items": {"type": "string"}}
            }
        },
        "GenerateEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object",
                    "properties": {
                        "success": {"type": "boolean"},
                        "message": {"type": "string"},
                        "entries": {"type": "integer"},
                        "export_file": {"type": "string"},
                        "stats": {"$ref": "#/definitions/GenerationStats"}
                    }
                }
            }
        },
        "ExportLink": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "token": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "run_id": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
