package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SimLab API",
        "description": "Classroom simulation platform: scenarios, submissions, simulation jobs, and the outcome ledger.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scenarios", "description": "Scenario lifecycle and outcome formulas"},
        {"name": "Submissions", "description": "Member submissions against the active scenario"},
        {"name": "Simulations", "description": "Preview, run, rerun, and job inspection"},
        {"name": "Ledger", "description": "Durable computed outcomes"},
        {"name": "Metrics", "description": "Pipeline statistics"}
    ],
    "paths": {
        "/scenarios": {
            "get": {
                "tags": ["Scenarios"],
                "summary": "List classroom scenarios",
                "parameters": [
                    {"name": "classroomId", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Scenarios"],
                "summary": "Create scenario",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScenarioRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}": {
            "get": {
                "tags": ["Scenarios"],
                "summary": "Get scenario by id",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Scenarios"],
                "summary": "Update scenario",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateScenarioRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/publish": {
            "post": {
                "tags": ["Scenarios"],
                "summary": "Publish scenario",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/unpublish": {
            "post": {
                "tags": ["Scenarios"],
                "summary": "Unpublish scenario",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/close": {
            "post": {
                "tags": ["Scenarios"],
                "summary": "Close scenario",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/outcome": {
            "get": {
                "tags": ["Scenarios"],
                "summary": "Get the scenario outcome formula",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Outcome not set", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Scenarios"],
                "summary": "Set or replace the scenario outcome formula",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertOutcomeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/preview": {
            "post": {
                "tags": ["Simulations"],
                "summary": "Preview outcomes for a sample of submissions",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/run": {
            "post": {
                "tags": ["Simulations"],
                "summary": "Run the scenario's simulation jobs",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "dryRun", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/rerun": {
            "post": {
                "tags": ["Simulations"],
                "summary": "Wipe the scenario ledger and recompute everything",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Jobs still processing", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/jobs": {
            "get": {
                "tags": ["Simulations"],
                "summary": "List a scenario's simulation jobs",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "tags": ["Simulations"],
                "summary": "Get a simulation job",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/ledger": {
            "get": {
                "tags": ["Ledger"],
                "summary": "List a scenario's ledger entries",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/ledger/me": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Get the caller's ledger entry",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scenarios/{id}/ledger/export": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Export a scenario's ledger as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "CSV content"}
                }
            }
        },
        "/classrooms/{classroomId}/active-scenario": {
            "get": {
                "tags": ["Scenarios"],
                "summary": "Get the classroom's active scenario",
                "parameters": [
                    {"name": "classroomId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active scenario", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{classroomId}/submissions": {
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit inputs for the classroom's active scenario",
                "parameters": [
                    {"name": "classroomId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{classroomId}/scenarios/{scenarioId}/submissions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List a scenario's submissions",
                "parameters": [
                    {"name": "classroomId", "in": "path", "type": "string", "required": true},
                    {"name": "scenarioId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{classroomId}/scenarios/{scenarioId}/submissions/me": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get the caller's submission",
                "parameters": [
                    {"name": "classroomId", "in": "path", "type": "string", "required": true},
                    {"name": "scenarioId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/snapshot": {
            "get": {
                "tags": ["Metrics"],
                "summary": "System metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateScenarioRequest": {
            "type": "object",
            "required": ["classroom_id", "title", "week"],
            "properties": {
                "classroom_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "week": {"type": "integer"},
                "variables": {"type": "array", "items": {"$ref": "#/definitions/VariableRequest"}}
            }
        },
        "UpdateScenarioRequest": {
            "type": "object",
            "required": ["title", "week"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "week": {"type": "integer"},
                "variables": {"type": "array", "items": {"$ref": "#/definitions/VariableRequest"}}
            }
        },
        "VariableRequest": {
            "type": "object",
            "required": ["name", "type"],
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "string", "enum": ["number", "text", "boolean"]},
                "value": {"type": "object"}
            }
        },
        "UpsertOutcomeRequest": {
            "type": "object",
            "required": ["scheme"],
            "properties": {
                "scheme": {"type": "string", "enum": ["WEIGHTED", "FIXED"]},
                "params": {"$ref": "#/definitions/OutcomeParams"}
            }
        },
        "OutcomeParams": {
            "type": "object",
            "properties": {
                "base_amount": {"type": "number"},
                "weights": {"type": "object"},
                "scale_variable": {"type": "string"},
                "min_payout": {"type": "number"},
                "max_payout": {"type": "number"}
            }
        },
        "CreateSubmissionRequest": {
            "type": "object",
            "required": ["inputs"],
            "properties": {
                "inputs": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
