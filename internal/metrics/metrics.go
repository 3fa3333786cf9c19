package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lms"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	QuizSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quiz_submissions_total",
		Help:      "Graded quiz submissions by outcome.",
	}, []string{"outcome"})

	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_requests_total",
		Help:      "Chat tutor requests by result.",
	}, []string{"result"})
)

// Quiz submission outcomes
const (
	OutcomeLessonCompleted  = "lesson_completed"
	OutcomeLessonIncomplete = "lesson_incomplete"
)

// Chat request results
const (
	ChatOK          = "ok"
	ChatUnavailable = "unavailable"
	ChatError       = "error"
)

// RecordQuizSubmission counts one graded submission
func RecordQuizSubmission(lessonCompleted bool) {
	outcome := OutcomeLessonIncomplete
	if lessonCompleted {
		outcome = OutcomeLessonCompleted
	}
	QuizSubmissions.WithLabelValues(outcome).Inc()
}

func RecordChatRequest(result string) {
	ChatRequests.WithLabelValues(result).Inc()
}

// Middleware records request count and latency under the matched route pattern
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry for scraping
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
