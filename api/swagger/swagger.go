package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Turnos API",
        "description": "Scheduling API for monthly liturgical volunteer rosters.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login and account session"},
        {"name": "People", "description": "Volunteer roster management"},
        {"name": "Jobs", "description": "Liturgical jobs and their positions"},
        {"name": "Sibling Groups", "description": "Related volunteers scheduled together or apart"},
        {"name": "Schedules", "description": "Monthly schedule lifecycle"},
        {"name": "Assignments", "description": "Post-generation slot edits"},
        {"name": "Reports", "description": "Fairness and coverage reporting"},
        {"name": "Exports", "description": "Background CSV/PDF exports"},
        {"name": "Users", "description": "Application accounts"},
        {"name": "System", "description": "Runtime metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue a token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current account",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change the current account password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/people": {
            "get": {
                "tags": ["People"],
                "summary": "List people",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "jobId", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "sortBy", "in": "query", "type": "string"},
                    {"name": "sortOrder", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["People"],
                "summary": "Create person",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePersonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}": {
            "get": {
                "tags": ["People"],
                "summary": "Get person",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["People"],
                "summary": "Update person",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePersonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["People"],
                "summary": "Deactivate person",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/people/{id}/unavailability": {
            "get": {
                "tags": ["People"],
                "summary": "List unavailability windows",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["People"],
                "summary": "Add unavailability window",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddUnavailabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/people/{id}/unavailability/{windowId}": {
            "delete": {
                "tags": ["People"],
                "summary": "Remove unavailability window",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "windowId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/people/{id}/assignments": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Upcoming assignments for a person",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "description": "YYYY-MM-DD, defaults to today"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List jobs",
                "parameters": [
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Jobs"],
                "summary": "Create job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateJobRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/jobs/{id}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Get job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Jobs"],
                "summary": "Update job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateJobRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Jobs"],
                "summary": "Deactivate job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/sibling-groups": {
            "get": {
                "tags": ["Sibling Groups"],
                "summary": "List sibling groups",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sibling Groups"],
                "summary": "Create sibling group",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSiblingGroupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sibling-groups/{id}": {
            "get": {
                "tags": ["Sibling Groups"],
                "summary": "Get sibling group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Sibling Groups"],
                "summary": "Update sibling group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSiblingGroupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sibling Groups"],
                "summary": "Delete sibling group",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate a schedule proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Month already scheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/save": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Persist a proposal as a draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string", "description": "proposal id"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Proposal expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule with slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete a non-published schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Published schedules cannot be deleted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/month/{year}/{month}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule by month",
                "parameters": [
                    {"name": "year", "in": "path", "required": true, "type": "integer"},
                    {"name": "month", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/completeness": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Completeness of a schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/publish": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Publish a complete draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not draft or not complete", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/unpublish": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Revert a published schedule to draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/archive": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Archive a published schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}": {
            "put": {
                "tags": ["Assignments"],
                "summary": "Replace the person in a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReplaceAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/{id}/clear": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Empty a slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/swap": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Swap the occupants of two slots",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SwapAssignmentsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/move": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Move an occupant to an empty slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rule violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/fairness": {
            "get": {
                "tags": ["Reports"],
                "summary": "Fairness ranking for a year",
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/summary": {
            "get": {
                "tags": ["Reports"],
                "summary": "Coverage summary for a stored month",
                "parameters": [
                    {"name": "year", "in": "query", "required": true, "type": "integer"},
                    {"name": "month", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/people/{id}/history": {
            "get": {
                "tags": ["Reports"],
                "summary": "Service history for a person",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Enqueue a schedule export",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "description": "csv or pdf"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/exports": {
            "get": {
                "tags": ["Exports"],
                "summary": "List exports of a schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export by signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "produces": ["text/csv", "application/pdf"],
                "responses": {
                    "200": {"description": "File stream"},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List accounts",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateUserRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/metrics/system": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Person": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "active": {"type": "boolean"},
                "preferred_frequency": {"type": "string", "enum": ["weekly", "bimonthly", "monthly"]},
                "max_consecutive_weeks": {"type": "integer"},
                "preference_level": {"type": "integer"},
                "exclude_monaguillos": {"type": "boolean"},
                "exclude_lectores": {"type": "boolean"},
                "qualified_job_ids": {"type": "array", "items": {"type": "string"}},
                "notes": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "people_required": {"type": "integer"},
                "color": {"type": "string"},
                "active": {"type": "boolean"},
                "positions": {"type": "array", "items": {"$ref": "#/definitions/JobPosition"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "JobPosition": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_id": {"type": "string"},
                "position_number": {"type": "integer"},
                "name": {"type": "string"}
            }
        },
        "SiblingGroup": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "pairing_rule": {"type": "string", "enum": ["TOGETHER", "SEPARATE"]},
                "member_ids": {"type": "array", "items": {"type": "string"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Unavailability": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "person_id": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "reason": {"type": "string"},
                "recurring": {"type": "boolean"},
                "created_at": {"type": "string"}
            }
        },
        "ScheduleSlotView": {
            "type": "object",
            "properties": {
                "assignmentId": {"type": "string"},
                "serviceDate": {"type": "string"},
                "jobId": {"type": "string"},
                "jobName": {"type": "string"},
                "position": {"type": "integer"},
                "positionName": {"type": "string"},
                "personId": {"type": "string"},
                "personName": {"type": "string"},
                "manualOverride": {"type": "boolean"}
            }
        },
        "ScheduleConflictView": {
            "type": "object",
            "properties": {
                "serviceDate": {"type": "string"},
                "jobId": {"type": "string"},
                "jobName": {"type": "string"},
                "position": {"type": "integer"},
                "positionName": {"type": "string"},
                "code": {"type": "string"},
                "reason": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "FairnessScoreView": {
            "type": "object",
            "properties": {
                "personId": {"type": "string"},
                "personName": {"type": "string"},
                "assignmentCount": {"type": "integer"},
                "lastServiceDate": {"type": "string"},
                "fairnessScore": {"type": "number"}
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "month": {"type": "integer"},
                "name": {"type": "string"}
            },
            "required": ["year", "month"]
        },
        "GenerateScheduleResponse": {
            "type": "object",
            "properties": {
                "proposalId": {"type": "string"},
                "year": {"type": "integer"},
                "month": {"type": "integer"},
                "name": {"type": "string"},
                "dates": {"type": "array", "items": {"type": "string"}},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/ScheduleSlotView"}},
                "conflicts": {"type": "array", "items": {"$ref": "#/definitions/ScheduleConflictView"}},
                "fairnessScores": {"type": "array", "items": {"$ref": "#/definitions/FairnessScoreView"}}
            }
        },
        "CompletenessView": {
            "type": "object",
            "properties": {
                "isComplete": {"type": "boolean"},
                "totalSlots": {"type": "integer"},
                "filledSlots": {"type": "integer"},
                "emptySlots": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "serviceDate": {"type": "string"},
                            "jobName": {"type": "string"},
                            "positionName": {"type": "string"}
                        }
                    }
                }
            }
        },
        "ScheduleDetailResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "year": {"type": "integer"},
                "month": {"type": "integer"},
                "name": {"type": "string"},
                "status": {"type": "string", "enum": ["DRAFT", "PUBLISHED", "ARCHIVED"]},
                "dates": {"type": "array", "items": {"type": "string"}},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/ScheduleSlotView"}},
                "completeness": {"$ref": "#/definitions/CompletenessView"}
            }
        },
        "MyAssignmentView": {
            "type": "object",
            "properties": {
                "assignmentId": {"type": "string"},
                "serviceDate": {"type": "string"},
                "jobName": {"type": "string"},
                "position": {"type": "integer"},
                "positionName": {"type": "string"}
            }
        },
        "MonthSummaryResponse": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "month": {"type": "integer"},
                "status": {"type": "string"},
                "dates": {"type": "array", "items": {"type": "string"}},
                "coverage": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "jobId": {"type": "string"},
                            "jobName": {"type": "string"},
                            "totalSlots": {"type": "integer"},
                            "filledSlots": {"type": "integer"}
                        }
                    }
                },
                "manualOverrides": {"type": "integer"},
                "distinctPeople": {"type": "integer"}
            }
        },
        "ExportStatusResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["QUEUED", "PROCESSING", "FINISHED", "FAILED"]},
                "progress": {"type": "integer"},
                "resultUrl": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "email": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "COORDINATOR", "MEMBER"]},
                "person_id": {"type": "string"},
                "active": {"type": "boolean"},
                "last_login": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["old_password", "new_password"]
        },
        "CreatePersonRequest": {
            "type": "object",
            "properties": {
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "preferredFrequency": {"type": "string"},
                "maxConsecutiveWeeks": {"type": "integer"},
                "preferenceLevel": {"type": "integer"},
                "excludeMonaguillos": {"type": "boolean"},
                "excludeLectores": {"type": "boolean"},
                "qualifiedJobIds": {"type": "array", "items": {"type": "string"}},
                "notes": {"type": "string"}
            },
            "required": ["firstName", "lastName", "preferredFrequency", "maxConsecutiveWeeks", "preferenceLevel"]
        },
        "UpdatePersonRequest": {
            "type": "object",
            "properties": {
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "active": {"type": "boolean"},
                "preferredFrequency": {"type": "string"},
                "maxConsecutiveWeeks": {"type": "integer"},
                "preferenceLevel": {"type": "integer"},
                "excludeMonaguillos": {"type": "boolean"},
                "excludeLectores": {"type": "boolean"},
                "qualifiedJobIds": {"type": "array", "items": {"type": "string"}},
                "notes": {"type": "string"}
            }
        },
        "AddUnavailabilityRequest": {
            "type": "object",
            "properties": {
                "startDate": {"type": "string"},
                "endDate": {"type": "string"},
                "reason": {"type": "string"},
                "recurring": {"type": "boolean"}
            },
            "required": ["startDate", "endDate"]
        },
        "CreateJobRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "peopleRequired": {"type": "integer"},
                "color": {"type": "string"},
                "positionNames": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["name", "peopleRequired"]
        },
        "UpdateJobRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "peopleRequired": {"type": "integer"},
                "color": {"type": "string"},
                "active": {"type": "boolean"},
                "positionNames": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CreateSiblingGroupRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "pairingRule": {"type": "string", "enum": ["TOGETHER", "SEPARATE"]},
                "memberIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["name", "pairingRule", "memberIds"]
        },
        "UpdateSiblingGroupRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "pairingRule": {"type": "string"},
                "memberIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ReplaceAssignmentRequest": {
            "type": "object",
            "properties": {
                "personId": {"type": "string"}
            },
            "required": ["personId"]
        },
        "SwapAssignmentsRequest": {
            "type": "object",
            "properties": {
                "assignmentIdA": {"type": "string"},
                "assignmentIdB": {"type": "string"}
            },
            "required": ["assignmentIdA", "assignmentIdB"]
        },
        "MoveAssignmentRequest": {
            "type": "object",
            "properties": {
                "fromAssignmentId": {"type": "string"},
                "toAssignmentId": {"type": "string"}
            },
            "required": ["fromAssignmentId", "toAssignmentId"]
        },
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "fullName": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "COORDINATOR", "MEMBER"]},
                "personId": {"type": "string"}
            },
            "required": ["email", "password", "fullName", "role"]
        },
        "UpdateUserRequest": {
            "type": "object",
            "properties": {
                "fullName": {"type": "string"},
                "role": {"type": "string"},
                "personId": {"type": "string"},
                "active": {"type": "boolean"}
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
                "status": {"type": "integer"}
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
