// internal/messages/messages.go
package messages

import "strings"

// Catalog keys. Rendering substitutes {{name}} placeholders, so copy edits
// never require code changes.
const (
	Welcome            = "welcome"
	Menu               = "menu"
	Help               = "help"
	AskGender          = "ask_gender"
	AskReason          = "ask_reason"
	AskExperience      = "ask_experience"
	AskWhatsapp        = "ask_whatsapp"
	GenderInvalid      = "gender_invalid"
	ReasonTooShort     = "reason_too_short"
	ReasonTooLong      = "reason_too_long"
	ExperienceTooShort = "experience_too_short"
	ExperienceTooLong  = "experience_too_long"
	WhatsappInvalid    = "whatsapp_invalid"
	Submitted          = "submitted"
	SaveFailed         = "save_failed"
	AlreadyApplied     = "already_applied"
	Banned             = "banned"
	Cancel             = "cancel"
	Unknown            = "unknown"
	Error              = "error"

	Status             = "status"
	StatusEmpty        = "status_empty"
	StatsReport        = "stats_report"
	StatsTeamLine      = "stats_team_line"
	NoApplicationsYet  = "no_applications_yet"
	NoStatsPermission  = "no_stats_permission"
	AdminOnly          = "admin_only"
	AdminOnlyAlert     = "admin_only_alert"
	ClearSuccess       = "clear_success"
	ClearFailed        = "clear_failed"
	BanUsage           = "ban_usage"
	BanSuccess         = "ban_success"
	BanAlready         = "ban_already"
	UnbanUsage         = "unban_usage"
	UnbanSuccess       = "unban_success"
	UnbanNotBanned     = "unban_not_banned"
	DeleteUsage        = "delete_usage"
	DeleteSuccess      = "delete_success"
	DeleteNotFound     = "delete_not_found"
	DeleteFailed       = "delete_failed"

	Notification       = "notification"
	Accepted           = "accepted"
	Rejected           = "rejected"
	AcceptConfirmation = "accept_confirmation"
	RejectConfirmation = "reject_confirmation"
	DecisionError      = "decision_error"

	RelayReply       = "relay_reply"
	RelayReplySent   = "relay_reply_sent"
	RelayReplyFailed = "relay_reply_failed"
	UserForward      = "user_forward"
	UserForwardAck   = "user_forward_ack"
	UserForwardFail  = "user_forward_fail"
	ChatEnded        = "chat_ended"
	ChatEndedAudit   = "chat_ended_audit"

	MediaReceived   = "media_received"
	MediaError      = "media_error"
	AdminMediaSent  = "admin_media_sent"
	AdminMediaError = "admin_media_error"

	BroadcastPrompt     = "broadcast_prompt"
	BroadcastAskText    = "broadcast_ask_text"
	BroadcastAskImage   = "broadcast_ask_image"
	BroadcastTooShort   = "broadcast_too_short"
	BroadcastNoUsers    = "broadcast_no_users"
	BroadcastHeader     = "broadcast_header"
	BroadcastSentReport = "broadcast_sent_report"
)

// Inline button labels
const (
	ButtonAccept         = "✅ قبول"
	ButtonReject         = "❌ رفض"
	ButtonEndChat        = "🔚 إنهاء المحادثة"
	ButtonGenderMale     = "ذكر 👨"
	ButtonGenderFemale   = "أنثى 👩"
	ButtonBroadcastText  = "📝 نص فقط"
	ButtonBroadcastImage = "🖼️ صورة مع نص"
)

// Placeholders for fields with no value.
const (
	UnknownTeamPlaceholder = "غير معروف"
	NoUsernamePlaceholder  = "(بدون معرف)"
	UnspecifiedPlaceholder = "غير محدد"
)

var catalog = map[string]string{
	Welcome: `مرحباً بك في بوت التقديم لتيمز Our Goal! 🎯

يسعدنا إنك حابب تكون جزء من فريقنا وتشاركنا في تحقيق النجاح.

اختار التيم اللي حابب تنضم له من الأزرار اللي تحت:

💡 <b>نصيحة:</b> يمكنك استخدام /menu لعرض القائمة الرئيسية في أي وقت

🆕 <b>جديد:</b> يمكنك الآن التفاعل مع الإدارة بالصور والفيديو والصوت!`,

	Menu: `📋 <b>القائمة الرئيسية - Our Goal Bot</b>

🎯 <b>الخيارات المتاحة:</b>

• /start - بدء التقديم للتيمز
• /menu - عرض هذه القائمة
• /help - مساعدة مفصلة
• /status - عرض حالة طلباتك
• /cancel - إلغاء العملية الحالية

💡 <b>كيفية الاستخدام:</b>
1. اضغط على /start للبدء
2. اختر التيم المناسب
3. اجب على الأسئلة المطلوبة
4. سيتم إرسال طلبك للإدارة

🔄 يمكنك الضغط على /start في أي وقت للتقديم على تيم جديد`,

	Help: `📋 <b>مساعدة - Our Goal Bot Enhanced</b>

🎯 <b>الأوامر المتاحة:</b>

• /start - بدء التقديم للتيمز
• /menu - عرض القائمة الرئيسية
• /help - عرض هذه المساعدة
• /cancel - إلغاء العملية الحالية
• /status - عرض حالة طلباتك

<b>للإدارة فقط:</b>
• /stats - إحصائيات التقديمات
• /clear - مسح جميع التقديمات
• /broadcast - إرسال رسالة جماعية

💡 <b>كيفية الاستخدام:</b>
1. اضغط على /start للبدء
2. اختر التيم المناسب
3. اجب على الأسئلة المطلوبة
4. سيتم إرسال طلبك للإدارة

🔄 يمكنك التقديم على أكثر من تيم

📱 <b>الميزات الجديدة:</b>
• إرسال الصور 📷
• إرسال الفيديوهات 🎥
• إرسال الرسائل الصوتية 🎤
• إرسال الملفات الصوتية 🎵
• تفاعل محسن مع الإدارة

🎯 <b>كيفية استخدام الوسائط:</b>
• بعد التقديم، يمكنك إرسال أي نوع من الوسائط للإدارة
• الإدارة يمكنها الرد عليك بنفس أنواع الوسائط
• جميع الملفات يتم حفظها بشكل آمن`,

	AskGender: `ممتاز! اختارك لـ {{team_name}} 👏

عشان نقدر نقيم طلبك بشكل أفضل، محتاجين نسألك كام سؤال:

السؤال الأول: ما هو جنسك؟
اختر من الأزرار اللي تحت:`,

	AskReason: `شكراً لإجابتك!

السؤال التاني: ليه عايز تنضم لـ {{team_name}}؟
إيه اللي خلاك تختار التيم دا تحديداً؟`,

	AskExperience: `شكراً لإجابتك!

السؤال الثالث: عندك أي خبرة أو مهارات متعلقة بشغل {{team_name}}؟

لو عندك خبرة، اكتب عنها بالتفصيل.`,

	AskWhatsapp: `السؤال الأخير: الرجاء كتابة رقم الواتساب الخاص بك 📱

نحتاج رقم الواتساب للتواصل معك بسبب عدم وجود اسم مستخدم (username) في حسابك على تليجرام.

يرجى كتابة الرقم بالتنسيق التالي:
🇪🇬 مصر: +201234567890 أو 01234567890
🇸🇦 السعودية: +966512345678 أو 0512345678

⚠️ تأكد من صحة الرقم لأنه سيتم استخدامه للتواصل معك!`,

	GenderInvalid: `⚠️ الرجاء اختيار الجنس من الأزرار اللي تحت.`,

	ReasonTooShort: `⚠️ الرجاء كتابة إجابة أكثر تفصيلاً (على الأقل {{min}} أحرف).

ليه عايز تنضم لـ {{team_name}}؟`,

	ReasonTooLong: `⚠️ الإجابة طويلة جداً. الرجاء اختصارها (أقل من {{max}} حرف).`,

	ExperienceTooShort: `⚠️ الرجاء كتابة إجابة أكثر تفصيلاً (على الأقل {{min}} أحرف).

ما هي خبرتك؟`,

	ExperienceTooLong: `⚠️ الإجابة طويلة جداً. الرجاء اختصارها (أقل من {{max}} حرف).`,

	WhatsappInvalid: `⚠️ رقم الواتساب غير صحيح.

يرجى كتابة الرقم بالتنسيق التالي:
🇪🇬 مصر: +201234567890 أو 01234567890
🇸🇦 السعودية: +966512345678 أو 0512345678`,

	Submitted: `تم تسليم طلبك بنجاح! 🎉

شكراً ليك على اهتمامك بالانضمام لـ {{team_name}}.
هيتم مراجعة طلبك وهنرد عليك قريباً إن شاء الله.

نتمنى نشوفك معانا في التيم! 🤝

يمكنك الضغط على /start للتقديم على تيم تاني لو عايز.

📱 <b>ملاحظة:</b> يمكنك الآن إرسال صور وفيديوهات ورسائل صوتية للإدارة!`,

	SaveFailed: `❌ حدث خطأ في حفظ طلبك. يرجى المحاولة مرة أخرى.`,

	AlreadyApplied: `أنت قدمت على {{team_name}} قبل كدا! 😊

يمكنك الضغط على /start لتقديم على تيم تاني.`,

	Banned: `❌ عذراً، تم حظرك من استخدام البوت.

للاستفسار يرجى التواصل مع الإدارة.`,

	Cancel: `تم إلغاء طلب التقديم.

يمكنك الضغط على /start للبدء من جديد.`,

	Unknown: `مرحبا بك في Our Goal! 🎯

يمكنك الضغط على /start للبدء من جديد أو /menu لعرض القائمة الرئيسية.

📱 <b>نصيحة:</b> يمكنك إرسال صور وفيديوهات ورسائل صوتية عند التفاعل مع الإدارة!`,

	Error: `❌ <b>حدث خطأ</b>

عذراً، حدث خطأ أثناء معالجة طلبك. يرجى المحاولة مرة أخرى.

إذا استمر الخطأ، يرجى التواصل مع الإدارة.`,

	Status: `📋 <b>حالة طلباتك</b>

👤 <b>المستخدم:</b> {{user_name}}
🆔 <b>معرف المستخدم:</b> {{user_id}}

📊 <b>إجمالي الطلبات:</b> {{total_applications}}

<b>تفاصيل الطلبات:</b>
{{applications_list}}
💡 يمكنك التقديم على تيمز أخرى باستخدام /start
📱 يمكنك إرسال صور وفيديوهات ورسائل صوتية للإدارة!`,

	StatusEmpty: `📋 لم تقدم على أي تيم بعد.

يمكنك الضغط على /start للبدء في التقديم.`,

	StatsReport: `📊 <b>إحصائيات طلبات التقديم</b>

📈 <b>الإحصائيات العامة:</b>
• إجمالي الطلبات: {{total_applications}}
• عدد المتقدمين: {{total_users}}
• الطلبات الأخيرة (7 أيام): {{recent_applications}}
• المستخدمين النشطين: {{active_users}}

🎯 <b>التفاصيل حسب التيم:</b>
{{team_lines}}`,

	StatsTeamLine: `• {{team_name}}: {{count}} طلب ({{percentage}}%)`,

	NoApplicationsYet: `لسه مفيش طلبات تقديم.`,

	NoStatsPermission: `معذرة، الأمر دا مخصص للادمن بس.`,

	AdminOnly: `⚠️ هذا الأمر مخصص للإدارة فقط`,

	AdminOnlyAlert: `هذا الأمر مخصص للإدارة فقط`,

	ClearSuccess: `🗑️ <b>تم مسح جميع التقديمات بنجاح!</b>

✅ تم مسح جميع التقديمات والبيانات
✅ يمكن للمستخدمين الآن التقديم مرة أخرى
✅ تم إعادة تصفير الإحصائيات
✅ تم إنشاء نسخة احتياطية من البيانات

📊 <b>للتأكد من المسح، يمكنك استخدام الأمر /stats</b>`,

	ClearFailed: `❌ حدث خطأ أثناء مسح التقديمات`,

	BanUsage:       `⚠️ الاستخدام: /ban <user_id>`,
	BanSuccess:     `✅ تم حظر المستخدم {{user_id}} بنجاح`,
	BanAlready:     `⚠️ المستخدم {{user_id}} محظور بالفعل`,
	UnbanUsage:     `⚠️ الاستخدام: /unban <user_id>`,
	UnbanSuccess:   `✅ تم إلغاء حظر المستخدم {{user_id}} بنجاح`,
	UnbanNotBanned: `⚠️ المستخدم {{user_id}} غير محظور`,

	DeleteUsage:    `⚠️ الاستخدام: /delete <application_id>`,
	DeleteSuccess:  `✅ تم حذف الطلب {{application_id}} بنجاح`,
	DeleteNotFound: `⚠️ لم يتم العثور على الطلب {{application_id}}`,
	DeleteFailed:   `❌ حدث خطأ أثناء حذف الطلب`,

	Notification: `🆕 <b>طلب تقديم جديد!</b>

👤 <b>المتقدم:</b> {{user_name}} {{username_text}}
🆔 <b>معرف المستخدم:</b> {{user_id}}
🎯 <b>التيم:</b> {{team_name}}
🚻 <b>الجنس:</b> {{gender}}

❓ <b>سبب الانضمام:</b>
{{reason}}

💼 <b>الخبرة:</b>
{{experience}}
{{whatsapp_line}}
📅 <b>وقت التقديم:</b> {{timestamp}}

💬 <b>للرد على المتقدم:</b> رد على هذه الرسالة وسيتم إرسال ردك إليه تلقائياً`,

	Accepted: `🎉 <b>تهانينا! تم قبول طلبك</b>

مرحباً بك في {{team_name}}! 🎯

تم قبول طلبك للانضمام لفريقنا. نحن متحمسون لوجودك معنا!

سيتم التواصل معك قريباً من قبل مسؤول الفريق لإعطائك التفاصيل والخطوات التالية.

نتطلع للعمل معك! 🤝

---
✅ <b>تم الموافقة بواسطة:</b> {{admin_name}}
📅 <b>تاريخ القبول:</b> {{timestamp}}`,

	Rejected: `📝 <b>شكراً لك على اهتمامك</b>

نشكرك على تقديمك للانضمام لـ {{team_name}}.

للأسف، لم نتمكن من قبول طلبك في الوقت الحالي. هذا لا يعني أن طلبك لم يكن جيداً، لكن لدينا عدد محدود من الأماكن المتاحة.

نشجعك على المحاولة مرة أخرى في المستقبل أو التقديم لفريق آخر.

شكراً لك مرة أخرى! 🙏

---
❌ <b>تم الرفض بواسطة:</b> {{admin_name}}
📅 <b>تاريخ الرد:</b> {{timestamp}}`,

	AcceptConfirmation: `✅ تم قبول المتقدم وإرسال رسالة التهنئة`,
	RejectConfirmation: `❌ تم رفض المتقدم وإرسال رسالة مهذبة`,
	DecisionError:      `حدث خطأ في معالجة القرار`,

	RelayReply: `📩 <b>رد من فريق Our Goal:</b>

{{text}}

---
📅 <b>وقت الرد:</b> {{timestamp}}

💡 <b>يمكنك الرد على هذه الرسالة وسيتم توصيلها للإدارة</b>`,

	RelayReplySent:   `✅ تم إرسال الرد للمتقدم بنجاح`,
	RelayReplyFailed: `❌ فشل في إرسال الرد للمتقدم`,

	UserForward: `💬 <b>رد من المتقدم:</b>

{{text}}

---
👤 <b>من:</b> {{user_name}} {{username_text}}
🆔 <b>معرف المستخدم:</b> {{user_id}}
📅 <b>وقت الرد:</b> {{timestamp}}`,

	UserForwardAck:  `✅ تم إرسال رسالتك للإدارة`,
	UserForwardFail: `❌ فشل في إرسال الرسالة`,

	ChatEnded: `🔚 <b>تم إنهاء المحادثة</b>

تم إنهاء المحادثة من قبل الإدارة.

شكراً لك على تواصلك معنا! 🙏

---
🛑 <b>تم الإنهاء بواسطة:</b> {{admin_name}}
📅 <b>وقت الإنهاء:</b> {{timestamp}}`,

	ChatEndedAudit: `🔚 تم إنهاء المحادثة بواسطة {{admin_name}}`,

	MediaReceived: `✅ <b>تم استلام الوسائط بنجاح!</b>

تم إرسال {{media_type}} للإدارة وسيتم الرد عليك قريباً.

📱 يمكنك إرسال المزيد من الوسائط أو الرسائل النصية.`,

	MediaError: `❌ <b>خطأ في الوسائط</b>

عذراً، حدث خطأ أثناء معالجة الملف المرسل.

يرجى التأكد من:
• حجم الملف أقل من {{max_size}} ميجابايت
• نوع الملف مدعوم
• جودة الاتصال بالإنترنت

يمكنك المحاولة مرة أخرى أو إرسال رسالة نصية.`,

	AdminMediaSent: `✅ <b>تم إرسال الوسائط بنجاح!</b>

تم إرسال {{media_type}} للمتقدم بنجاح.

يمكنك الاستمرار في المحادثة أو إنهاؤها.`,

	AdminMediaError: `❌ <b>فشل في إرسال الوسائط</b>

حدث خطأ أثناء إرسال {{media_type}} للمتقدم.

يرجى المحاولة مرة أخرى أو إرسال رسالة نصية.`,

	BroadcastPrompt: `📢 <b>إرسال رسالة جماعية</b>

اختر نوع الرسالة الجماعية:`,

	BroadcastAskText: `📢 <b>إرسال رسالة جماعية</b>

أرسل الرسالة التي تريد إرسالها لجميع المستخدمين:

⚠️ <b>تنبيه:</b> سيتم إرسال الرسالة لجميع المستخدمين الذين تفاعلوا مع البوت`,

	BroadcastAskImage: `🖼️ <b>إرسال صورة جماعية</b>

أرسل الصورة التي تريد إرسالها لجميع المستخدمين (مع نص اختياري):

⚠️ <b>تنبيه:</b> سيتم إرسال الصورة لجميع المستخدمين الذين تفاعلوا مع البوت`,

	BroadcastTooShort: `⚠️ الرسالة قصيرة جداً. يرجى كتابة رسالة أطول.`,

	BroadcastNoUsers: `❌ لا يوجد مستخدمين لإرسال الرسالة إليهم.`,

	BroadcastHeader: `📢 <b>رسالة من فريق Our Goal</b>

{{text}}

---
📅 {{timestamp}}`,

	BroadcastSentReport: `✅ <b>تم إرسال الرسالة الجماعية بنجاح!</b>

📊 <b>الإحصائيات:</b>
• تم الإرسال لـ {{sent_count}} مستخدم
• فشل الإرسال لـ {{failed_count}} مستخدم

📅 <b>وقت الإرسال:</b> {{timestamp}}`,
}

var mediaTypeNames = map[string]string{
	"photo": "الصورة",
	"video": "الفيديو",
	"audio": "الملف الصوتي",
	"voice": "الرسالة الصوتية",
}

var genderNames = map[string]string{
	"male":   "ذكر",
	"female": "أنثى",
}

// Render looks up a catalog entry and substitutes {{name}} placeholders.
// Unknown keys render empty so a missing entry surfaces in review, not as a
// runtime panic.
func Render(key string, data map[string]string) string {
	template, ok := catalog[key]
	if !ok {
		return ""
	}
	return substitute(template, data)
}

// Get returns a catalog entry without substitution.
func Get(key string) string {
	return catalog[key]
}

func substitute(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// UsernameText renders an applicant's handle for reviewer-facing text.
func UsernameText(username string) string {
	if username == "" {
		return NoUsernamePlaceholder
	}
	return "(@" + username + ")"
}

// MediaTypeName translates a media kind for user-facing text.
func MediaTypeName(kind string) string {
	if name, ok := mediaTypeNames[kind]; ok {
		return name
	}
	return kind
}

// GenderName translates a stored gender value for user-facing text.
func GenderName(gender string) string {
	if name, ok := genderNames[gender]; ok {
		return name
	}
	return gender
}
