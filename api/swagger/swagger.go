package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Hub API",
        "description": "Campus announcements, complaints and facility bookings",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Account registration and sessions"},
        {"name": "Users", "description": "Profiles and the staff directory"},
        {"name": "Announcements", "description": "Campus announcements with audience targeting"},
        {"name": "Complaints", "description": "Student complaints and their lifecycle"},
        {"name": "Bookings", "description": "Facility booking requests and decisions"},
        {"name": "Reports", "description": "Background CSV/PDF exports"}
    ],
    "paths": {
        "/auth/register": {
            "post": {"tags": ["Authentication"], "summary": "Register account", "responses": {"201": {"description": "Created"}, "400": {"description": "Validation error"}}}
        },
        "/auth/login": {
            "post": {"tags": ["Authentication"], "summary": "Authenticate user", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}}
        },
        "/auth/refresh": {
            "post": {"tags": ["Authentication"], "summary": "Refresh access token", "responses": {"200": {"description": "OK"}, "401": {"description": "Expired or revoked"}}}
        },
        "/auth/logout": {
            "post": {"tags": ["Authentication"], "summary": "Logout current session", "responses": {"204": {"description": "No Content"}}}
        },
        "/auth/change-password": {
            "post": {"tags": ["Authentication"], "summary": "Change password", "responses": {"204": {"description": "No Content"}}}
        },
        "/auth/me": {
            "get": {"tags": ["Authentication"], "summary": "Current user info", "responses": {"200": {"description": "OK"}}}
        },
        "/users": {
            "get": {"tags": ["Users"], "summary": "List users (staff)", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/users/me": {
            "put": {"tags": ["Users"], "summary": "Update own profile", "responses": {"200": {"description": "OK"}}}
        },
        "/users/{id}": {
            "get": {"tags": ["Users"], "summary": "Get profile", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/users/{id}/deactivate": {
            "post": {"tags": ["Users"], "summary": "Deactivate account (senior staff)", "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}}
        },
        "/users/{id}/reactivate": {
            "post": {"tags": ["Users"], "summary": "Reactivate account (senior staff)", "responses": {"204": {"description": "No Content"}}}
        },
        "/announcements": {
            "get": {"tags": ["Announcements"], "summary": "List visible announcements", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Announcements"], "summary": "Create announcement (staff)", "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/announcements/{id}": {
            "get": {"tags": ["Announcements"], "summary": "Get announcement", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"tags": ["Announcements"], "summary": "Edit announcement", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}},
            "delete": {"tags": ["Announcements"], "summary": "Delete announcement", "responses": {"204": {"description": "No Content"}}}
        },
        "/announcements/{id}/publish": {
            "post": {"tags": ["Announcements"], "summary": "Publish draft", "responses": {"200": {"description": "OK"}, "409": {"description": "State conflict"}}}
        },
        "/announcements/{id}/archive": {
            "post": {"tags": ["Announcements"], "summary": "Archive announcement", "responses": {"200": {"description": "OK"}, "409": {"description": "State conflict"}}}
        },
        "/announcements/{id}/read": {
            "post": {"tags": ["Announcements"], "summary": "Mark as read", "responses": {"200": {"description": "OK"}}}
        },
        "/announcements/{id}/bookmark": {
            "post": {"tags": ["Announcements"], "summary": "Toggle bookmark", "responses": {"200": {"description": "OK"}}}
        },
        "/complaints": {
            "get": {"tags": ["Complaints"], "summary": "List complaints (role-scoped)", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Complaints"], "summary": "File complaint (students)", "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/complaints/{id}": {
            "get": {"tags": ["Complaints"], "summary": "Get complaint", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/complaints/{id}/status": {
            "patch": {"tags": ["Complaints"], "summary": "Transition status (staff)", "responses": {"200": {"description": "OK"}, "409": {"description": "State conflict"}}}
        },
        "/complaints/{id}/escalate": {
            "post": {"tags": ["Complaints"], "summary": "Escalate complaint (staff)", "responses": {"200": {"description": "OK"}, "409": {"description": "At maximum level"}}}
        },
        "/complaints/{id}/responses": {
            "get": {"tags": ["Complaints"], "summary": "List thread responses", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Complaints"], "summary": "Add thread response", "responses": {"201": {"description": "Created"}}}
        },
        "/complaints/{id}/rate": {
            "post": {"tags": ["Complaints"], "summary": "Rate resolved complaint", "responses": {"200": {"description": "OK"}, "409": {"description": "Not resolved or already rated"}}}
        },
        "/bookings": {
            "get": {"tags": ["Bookings"], "summary": "List bookings (role-scoped)", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Bookings"], "summary": "Request booking", "responses": {"201": {"description": "Created"}}}
        },
        "/bookings/{id}": {
            "get": {"tags": ["Bookings"], "summary": "Get booking", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/bookings/{id}/decide": {
            "post": {"tags": ["Bookings"], "summary": "Approve or reject (staff)", "responses": {"200": {"description": "OK"}, "409": {"description": "Already decided"}}}
        },
        "/bookings/{id}/complete": {
            "post": {"tags": ["Bookings"], "summary": "Complete booking (staff)", "responses": {"200": {"description": "OK"}, "409": {"description": "State conflict"}}}
        },
        "/bookings/{id}/cancel": {
            "post": {"tags": ["Bookings"], "summary": "Cancel booking", "responses": {"200": {"description": "OK"}, "409": {"description": "State conflict"}}}
        },
        "/reports": {
            "post": {"tags": ["Reports"], "summary": "Queue report export (staff)", "responses": {"202": {"description": "Accepted"}}}
        },
        "/reports/{id}": {
            "get": {"tags": ["Reports"], "summary": "Report job status", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/reports/download/{token}": {
            "get": {"tags": ["Reports"], "summary": "Download rendered report", "responses": {"200": {"description": "File"}, "401": {"description": "Invalid token"}}}
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "message": {"type": "string"},
                "pagination": {"$ref": "#/definitions/Pagination"}
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
